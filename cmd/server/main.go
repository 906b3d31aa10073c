package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/app"
	"github.com/Freeeeeet/legal_consult/internal/config"
	"github.com/Freeeeeet/legal_consult/internal/controller"
	"github.com/Freeeeeet/legal_consult/internal/controller/httpapi"
	"github.com/Freeeeeet/legal_consult/internal/events"
	"github.com/Freeeeeet/legal_consult/internal/repository"
	"github.com/Freeeeeet/legal_consult/internal/repository/memory"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// storage набор хранилищ, одинаковый для PostgreSQL и памяти
type storage struct {
	consultations interface {
		service.ConsultationRepository
		service.StalePendingFinder
		controller.ConsultationReader
	}
	outbox interface {
		events.Outbox
		service.EventLog
	}
	payments service.PaymentStore
	users    service.UserStore
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting legal consultation service",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("memory_store", cfg.UseMemoryStore()),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	consultationService := service.NewConsultationService(store.consultations, store.users, logger)
	paymentService := service.NewPaymentService(store.payments, store.consultations, consultationService, logger)
	userService := service.NewUserService(store.users, logger)
	historyService := service.NewHistoryService(consultationService, store.outbox)

	deduper, closeDeduper, err := openDeduper(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeduper()

	dispatcher := events.NewDispatcher(store.outbox, deduper, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	dispatcher.Subscribe("audit_log", events.NewAuditLogHandler(logger))

	var botController *controller.BotController
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		botController = controller.NewBotController(b, userService, consultationService, paymentService, cfg.Location, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			// Меню команд не критично для работы
			logger.Warn("Bot commands were not registered", zap.Error(err))
		}
		dispatcher.Subscribe("telegram_notifier", controller.NewNotifier(b, store.consultations, store.users, cfg.Location, logger))
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, bot is disabled")
	}

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.ExpiryEnabled() {
		expiry := service.NewExpiryService(store.consultations, consultationService, cfg.PendingTTL, logger)
		scheduler := app.NewScheduler(expiry, logger)
		if err := scheduler.Start(ctx, cfg.PendingExpirySchedule); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if botController != nil {
		go func() {
			_ = botController.Start(ctx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(consultationService, paymentService, historyService, logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.UseMemoryStore() {
		logger.Warn("Using in-memory storage, data is lost on restart")
		mem := memory.NewStore()
		return &storage{
			consultations: mem,
			outbox:        mem,
			payments:      mem,
			users:         mem.Users(),
			close:         func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer migrator.Close()
	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &storage{
		consultations: repository.NewConsultationRepository(pool),
		outbox:        repository.NewOutboxRepository(pool),
		payments:      repository.NewPaymentRepository(pool),
		users:         repository.NewUserRepository(pool),
		close:         pool.Close,
	}, nil
}

func openDeduper(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Deduper, func(), error) {
	if cfg.RedisAddr == "" {
		return events.NewMemoryDeduper(), func() {}, nil
	}

	rdb, err := events.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis deduper enabled", zap.String("addr", cfg.RedisAddr))
	return events.NewRedisDeduper(rdb, events.DedupeTTL), func() { _ = rdb.Close() }, nil
}
