package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// MemoryDSN запуск без PostgreSQL, всё хранится в памяти процесса
const MemoryDSN = "memory"

type Config struct {
	DBDSN          string
	Environment    string
	LogLevel       string
	HTTPAddr       string
	TelegramToken  string
	RedisAddr      string
	MigrationsPath string

	// Location часовой пояс для дат в сообщениях бота
	Location *time.Location

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// PendingTTL 0 отключает автоматическую отмену неподтверждённых заявок
	PendingTTL            time.Duration
	PendingExpirySchedule string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Файла может не быть, тогда берём только окружение
	_ = godotenv.Load(".env")
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из произвольного источника переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:                 getenv("DB_DSN"),
		Environment:           withDefault(getenv("ENV"), "development"),
		LogLevel:              getenv("LOG_LEVEL"),
		HTTPAddr:              withDefault(getenv("HTTP_ADDR"), ":8080"),
		TelegramToken:         getenv("TELEGRAM_TOKEN"),
		RedisAddr:             getenv("REDIS_ADDR"),
		MigrationsPath:        withDefault(getenv("MIGRATIONS_PATH"), "migrations"),
		PendingExpirySchedule: withDefault(getenv("PENDING_EXPIRY_SCHEDULE"), "@every 10m"),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	var err error
	if cfg.Location, err = time.LoadLocation(withDefault(getenv("TIMEZONE"), "Europe/Moscow")); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.OutboxPollInterval, err = parseDuration(getenv, "OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PendingTTL, err = parseDuration(getenv, "PENDING_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = parseInt(getenv, "OUTBOX_BATCH_SIZE", 50); err != nil {
		return nil, err
	}

	if cfg.OutboxPollInterval <= 0 {
		return nil, fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if cfg.OutboxBatchSize <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if cfg.PendingTTL < 0 {
		return nil, fmt.Errorf("PENDING_TTL must not be negative")
	}

	return cfg, nil
}

// UseMemoryStore хранилище в памяти вместо PostgreSQL
func (c *Config) UseMemoryStore() bool {
	return c.DBDSN == MemoryDSN
}

// ExpiryEnabled включена ли задача истечения pending заявок
func (c *Config) ExpiryEnabled() bool {
	return c.PendingTTL > 0
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseInt(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
