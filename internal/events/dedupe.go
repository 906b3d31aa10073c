package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DedupeTTL сколько помнить обработанные события
const DedupeTTL = 7 * 24 * time.Hour

// Deduper помнит, какие события подписчик уже обработал
type Deduper interface {
	Seen(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Remember(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// MemoryDeduper для одного процесса
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Seen(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[dedupeKey(consumer, eventID)]
	return ok, nil
}

func (d *MemoryDeduper) Remember(_ context.Context, consumer string, eventID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[dedupeKey(consumer, eventID)] = struct{}{}
	return nil
}

// RedisDeduper общий для нескольких экземпляров сервиса
type RedisDeduper struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewRedisDeduper(rdb goredis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DedupeTTL
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func (d *RedisDeduper) Seen(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupeKey(consumer, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Remember(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if err := d.rdb.Set(ctx, dedupeKey(consumer, eventID), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func dedupeKey(consumer string, eventID uuid.UUID) string {
	return "legal_consult:events:" + consumer + ":" + eventID.String()
}
