package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PendingExpirer отменяет зависшие заявки
type PendingExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Scheduler фоновые задачи по cron-расписанию
type Scheduler struct {
	cron    *cron.Cron
	expirer PendingExpirer
	logger  *zap.Logger
}

// cronLogger пишет события cron в zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler не запускает задачу повторно, пока не закончился предыдущий прогон
func NewScheduler(expirer PendingExpirer, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		expirer: expirer,
		logger:  logger,
	}
}

// Start регистрирует задачу истечения и запускает cron.
// Пустое schedule отключает задачу.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		s.logger.Info("Pending expiry job disabled")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() { s.expirePending(ctx) })
	if err != nil {
		return fmt.Errorf("schedule pending expiry %q: %w", schedule, err)
	}

	s.logger.Info("Starting background scheduler", zap.String("pending_expiry", schedule))
	s.cron.Start()
	return nil
}

// Stop останавливает cron и ждёт текущих задач
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) expirePending(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	n, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("Failed to expire pending consultations", zap.Error(err))
		return
	}

	s.logger.Debug("Pending expiry run completed", zap.Int("expired", n))
}
