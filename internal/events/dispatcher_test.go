package events

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	fail   bool
}

func (r *recorder) Handle(_ context.Context, e model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("consumer unavailable")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) names() []model.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]model.EventName, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name())
	}
	return names
}

func seedConsultation(t *testing.T, store *memory.Store) *model.Consultation {
	t.Helper()

	client, lawyer := uuid.New(), uuid.New()
	price, err := model.NewPrice(100000, "RUB")
	require.NoError(t, err)

	now := time.Now()
	c, err := model.Book(model.BookParams{
		ClientID: client,
		LawyerID: lawyer,
		Type:     model.ConsultationTypeEmergency,
		Price:    price,
	}, now)
	require.NoError(t, err)
	c, err = store.Save(context.Background(), c)
	require.NoError(t, err)

	require.NoError(t, c.Confirm(lawyer, now))
	c, err = store.Save(context.Background(), c)
	require.NoError(t, err)
	return c
}

func TestDispatcher_DeliversInOrderOnce(t *testing.T) {
	store := memory.NewStore()
	seedConsultation(t, store)

	d := NewDispatcher(store, NewMemoryDeduper(), time.Second, 10, zaptest.NewLogger(t))
	rec := &recorder{}
	d.Subscribe("recorder", rec)
	d.Subscribe("audit", NewAuditLogHandler(zaptest.NewLogger(t)))

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []model.EventName{model.EventConsultationBooked, model.EventConsultationConfirmed}, rec.names())

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, rec.names(), 2)
}

func TestDispatcher_RetryDoesNotRepeatSuccessfulConsumer(t *testing.T) {
	store := memory.NewStore()
	c := seedConsultation(t, store)

	d := NewDispatcher(store, NewMemoryDeduper(), time.Second, 10, zaptest.NewLogger(t))
	// Повтор доступен сразу
	d.now = func() time.Time { return time.Now().Add(-time.Hour) }

	ok := &recorder{}
	flaky := &recorder{fail: true}
	d.Subscribe("ok", ok)
	d.Subscribe("flaky", flaky)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	records, err := store.ListByConsultation(context.Background(), c.ID())
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, 1, r.Attempts)
		assert.Equal(t, "flaky: consumer unavailable", r.LastError)
		assert.Nil(t, r.ProcessedAt)
	}

	flaky.mu.Lock()
	flaky.fail = false
	flaky.mu.Unlock()

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, ok.names(), 2)
	assert.Len(t, flaky.names(), 2)
}

func TestDispatcher_FailedEventWaitsForRetry(t *testing.T) {
	store := memory.NewStore()
	seedConsultation(t, store)

	d := NewDispatcher(store, NewMemoryDeduper(), time.Second, 10, zaptest.NewLogger(t))
	d.Subscribe("flaky", &recorder{fail: true})

	_, err := d.DispatchPending(context.Background())
	require.NoError(t, err)

	pending, err := store.FetchUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatcher_StartStop(t *testing.T) {
	store := memory.NewStore()
	seedConsultation(t, store)

	d := NewDispatcher(store, NewMemoryDeduper(), 10*time.Millisecond, 10, zaptest.NewLogger(t))
	rec := &recorder{}
	d.Subscribe("recorder", rec)

	d.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.names()) == 2 }, time.Second, 5*time.Millisecond)
	d.Stop()
	d.Stop()
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(0))
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 8*time.Second, retryDelay(3))
	assert.Equal(t, maxRetryDelay, retryDelay(30))
}

func TestRedisDeduper(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb, err := NewRedisClient(context.Background(), addr)
	require.NoError(t, err)
	defer rdb.Close()

	d := NewRedisDeduper(rdb, time.Minute)
	id := uuid.New()

	seen, err := d.Seen(context.Background(), "test", id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(context.Background(), "test", id))

	seen, err = d.Seen(context.Background(), "test", id)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(context.Background(), "other", id)
	require.NoError(t, err)
	assert.False(t, seen)
}
