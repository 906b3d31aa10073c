// Package events доставляет события консультаций из outbox подписчикам.
// Доставка at-least-once: подписчик может получить событие повторно, повтор отсекает Deduper.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultBatchSize    = 50

	baseRetryDelay = time.Second
	maxRetryDelay  = 5 * time.Minute
)

// Outbox источник неотправленных событий
type Outbox interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]model.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time) error
}

// Handler подписчик на события
type Handler interface {
	Handle(ctx context.Context, e model.Event) error
}

// HandlerFunc функция-подписчик
type HandlerFunc func(ctx context.Context, e model.Event) error

func (f HandlerFunc) Handle(ctx context.Context, e model.Event) error { return f(ctx, e) }

type subscription struct {
	consumer string
	handler  Handler
}

type Dispatcher struct {
	outbox       Outbox
	deduper      Deduper
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time

	mu   sync.RWMutex
	subs []subscription

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(outbox Outbox, deduper Deduper, pollInterval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Dispatcher{
		outbox:       outbox,
		deduper:      deduper,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		now:          time.Now,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Subscribe регистрирует подписчика. consumer используется как ключ дедупликации
func (d *Dispatcher) Subscribe(consumer string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscription{consumer: consumer, handler: h})
}

// Start запускает цикл опроса outbox
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting event dispatcher",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize),
	)
	go d.run(ctx)
}

// Stop останавливает цикл и ждёт завершения текущей пачки
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("Stopping event dispatcher")
		close(d.stopChan)
	})
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchPending(ctx); err != nil {
			d.logger.Error("Failed to dispatch events", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-d.stopChan:
			d.logger.Info("Event dispatcher stopped")
			return
		case <-ctx.Done():
			d.logger.Info("Event dispatcher cancelled")
			return
		}
	}
}

// DispatchPending доставляет одну пачку событий, возвращает число доставленных
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	records, err := d.outbox.FetchUnprocessed(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}

	delivered := 0
	for _, rec := range records {
		if err := d.deliver(ctx, rec); err != nil {
			retryAt := d.now().Add(retryDelay(rec.Attempts))
			d.logger.Warn("Event delivery failed",
				zap.String("event_id", rec.ID.String()),
				zap.String("event", string(rec.Name)),
				zap.Int("attempts", rec.Attempts+1),
				zap.Time("retry_at", retryAt),
				zap.Error(err),
			)
			if markErr := d.outbox.MarkFailed(ctx, rec.ID, err.Error(), retryAt); markErr != nil {
				return delivered, fmt.Errorf("mark event failed: %w", markErr)
			}
			continue
		}

		if err := d.outbox.MarkProcessed(ctx, rec.ID, d.now()); err != nil {
			return delivered, fmt.Errorf("mark event processed: %w", err)
		}
		delivered++
	}

	return delivered, nil
}

// deliver вызывает всех подписчиков. Уже обработавшие событие пропускаются,
// поэтому повтор после частичного сбоя не дублирует эффекты
func (d *Dispatcher) deliver(ctx context.Context, rec model.OutboxRecord) error {
	event, err := rec.Decode()
	if err != nil {
		return err
	}

	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		seen, err := d.deduper.Seen(ctx, sub.consumer, rec.ID)
		if err != nil {
			return fmt.Errorf("dedupe %s: %w", sub.consumer, err)
		}
		if seen {
			continue
		}

		if err := sub.handler.Handle(ctx, event); err != nil {
			return fmt.Errorf("%s: %w", sub.consumer, err)
		}

		if err := d.deduper.Remember(ctx, sub.consumer, rec.ID); err != nil {
			return fmt.Errorf("remember %s: %w", sub.consumer, err)
		}
	}

	return nil
}

func retryDelay(attempts int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
