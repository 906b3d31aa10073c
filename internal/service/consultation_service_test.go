package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	svc     *ConsultationService
	users   *UserService
	lawyer  *model.User
	client  *model.User
	client2 *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo позволяет обернуть хранилище для внедрения сбоев
func newFixtureWithRepo(t *testing.T, wrap func(*memory.Store) ConsultationRepository) *fixture {
	t.Helper()

	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	users := NewUserService(store.Users(), logger)

	lawyer, err := users.RegisterUser(ctx, 100, "lawyer", "Анна", "Петрова")
	require.NoError(t, err)
	price, err := model.NewPrice(500000, "RUB")
	require.NoError(t, err)
	lawyer, err = users.MakeLawyer(ctx, lawyer.ID, price)
	require.NoError(t, err)

	client, err := users.RegisterUser(ctx, 200, "client", "Иван", "")
	require.NoError(t, err)
	client2, err := users.RegisterUser(ctx, 300, "client2", "Мария", "")
	require.NoError(t, err)

	var repo ConsultationRepository = store
	if wrap != nil {
		repo = wrap(store)
	}

	svc := NewConsultationService(repo, store.Users(), logger).WithClock(func() time.Time { return fixedNow })

	return &fixture{store: store, svc: svc, users: users, lawyer: lawyer, client: client, client2: client2}
}

func (f *fixture) book(t *testing.T, client *model.User) *model.Consultation {
	t.Helper()
	c, err := f.svc.Book(context.Background(), BookCommand{
		ClientID: client.ID,
		LawyerID: f.lawyer.ID,
		Type:     model.ConsultationTypeEmergency,
	})
	require.NoError(t, err)
	return c
}

func eventNames(records []model.OutboxRecord) []model.EventName {
	names := make([]model.EventName, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return names
}

func TestConsultationService_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.book(t, f.client)
	assert.Equal(t, model.ConsultationStatusPending, c.Status())
	assert.Equal(t, int64(500000), c.Price().Amount())
	assert.Equal(t, "RUB", c.Price().Currency())

	_, err := f.svc.Confirm(ctx, c.ID(), f.lawyer.ID)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, c.ID(), f.lawyer.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, c.ID(), f.lawyer.ID)
	require.NoError(t, err)
	rated, err := f.svc.Rate(ctx, c.ID(), f.client.ID, 5, "great")
	require.NoError(t, err)

	assert.Equal(t, model.ConsultationStatusCompleted, rated.Status())
	require.NotNil(t, rated.Rating())
	assert.Equal(t, 5, rated.Rating().Score)
	assert.Equal(t, int64(5), rated.Version())

	records, err := f.store.ListByConsultation(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, []model.EventName{
		model.EventConsultationBooked,
		model.EventConsultationConfirmed,
		model.EventConsultationStarted,
		model.EventConsultationCompleted,
		model.EventConsultationRated,
	}, eventNames(records))
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Version)
	}
}

func TestConsultationService_BookRejectsUnknownLawyer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookCommand{
		ClientID: f.client.ID,
		LawyerID: f.client2.ID,
		Type:     model.ConsultationTypeEmergency,
	})
	assert.ErrorIs(t, err, model.ErrInvalidConsultation)

	_, err = f.svc.Book(context.Background(), BookCommand{
		ClientID: f.client.ID,
		LawyerID: uuid.New(),
		Type:     model.ConsultationTypeEmergency,
	})
	assert.ErrorIs(t, err, model.ErrInvalidConsultation)
}

func TestConsultationService_BookScheduledRequiresSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookCommand{
		ClientID: f.client.ID,
		LawyerID: f.lawyer.ID,
		Type:     model.ConsultationTypeScheduled,
	})
	assert.ErrorIs(t, err, model.ErrInvalidConsultation)
	assert.Empty(t, f.store.Events())
}

func TestConsultationService_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, uuid.New(), f.lawyer.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.Get(ctx, uuid.New(), f.client.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestConsultationService_GetOnlyForParties(t *testing.T) {
	f := newFixture(t)
	c := f.book(t, f.client)

	got, err := f.svc.Get(context.Background(), c.ID(), f.lawyer.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID(), got.ID())

	_, err = f.svc.Get(context.Background(), c.ID(), f.client2.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestConsultationService_ConfirmWhileBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, f.client)
	second := f.book(t, f.client2)

	_, err := f.svc.Confirm(ctx, first.ID(), f.lawyer.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, second.ID(), f.lawyer.ID)
	assert.ErrorIs(t, err, model.ErrLawyerBusy)

	stored, err := f.store.FindByID(ctx, second.ID())
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusPending, stored.Status())

	// После завершения первой юрист снова свободен
	_, err = f.svc.Start(ctx, first.ID(), f.lawyer.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, first.ID(), f.lawyer.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, second.ID(), f.lawyer.ID)
	assert.NoError(t, err)
}

func TestConsultationService_BusyCheckAfterAuthAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, f.client)
	second := f.book(t, f.client2)
	_, err := f.svc.Confirm(ctx, first.ID(), f.lawyer.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, second.ID(), f.client.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.svc.Start(ctx, second.ID(), f.lawyer.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestConsultationService_ConcurrentActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make([]uuid.UUID, n)
	for i := range ids {
		client, err := f.users.RegisterUser(ctx, int64(1000+i), "", fmt.Sprintf("client-%d", i), "")
		require.NoError(t, err)
		ids[i] = f.book(t, client).ID()
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		busy      atomic.Int32
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.svc.Confirm(ctx, id, f.lawyer.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrLawyerBusy):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(n-1), busy.Load())
}

// blindRepo пропускает быструю проверку занятости: остаётся только ограничение хранилища
type blindRepo struct {
	*memory.Store
}

func (r blindRepo) FindActiveByLawyer(context.Context, uuid.UUID) (*model.Consultation, error) {
	return nil, nil
}

func TestConsultationService_StorageConstraintIsBackstop(t *testing.T) {
	f := newFixtureWithRepo(t, func(s *memory.Store) ConsultationRepository { return blindRepo{s} })
	ctx := context.Background()

	first := f.book(t, f.client)
	second := f.book(t, f.client2)

	_, err := f.svc.Confirm(ctx, first.ID(), f.lawyer.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, second.ID(), f.lawyer.ID)
	assert.ErrorIs(t, err, model.ErrLawyerBusy)

	stored, err := f.store.FindByID(ctx, second.ID())
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusPending, stored.Status())
	assert.Equal(t, int64(1), stored.Version())
}

// flakyRepo отвечает конфликтом версий первые failures сохранений
type flakyRepo struct {
	*memory.Store
	failures int
	saves    int
}

func (r *flakyRepo) Save(ctx context.Context, c *model.Consultation) (*model.Consultation, error) {
	r.saves++
	if r.saves <= r.failures {
		return nil, fmt.Errorf("%w: injected", model.ErrConcurrencyConflict)
	}
	return r.Store.Save(ctx, c)
}

func TestConsultationService_RetriesConcurrencyConflict(t *testing.T) {
	t.Run("succeeds within attempts", func(t *testing.T) {
		repo := &flakyRepo{}
		f := newFixtureWithRepo(t, func(s *memory.Store) ConsultationRepository {
			repo.Store = s
			return repo
		})
		c := f.book(t, f.client)
		repo.saves = 0
		repo.failures = MaxCommandAttempts - 1

		confirmed, err := f.svc.Confirm(context.Background(), c.ID(), f.lawyer.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ConsultationStatusConfirmed, confirmed.Status())
		assert.Equal(t, MaxCommandAttempts, repo.saves)
	})

	t.Run("surfaces conflict after last attempt", func(t *testing.T) {
		repo := &flakyRepo{}
		f := newFixtureWithRepo(t, func(s *memory.Store) ConsultationRepository {
			repo.Store = s
			return repo
		})
		c := f.book(t, f.client)
		repo.saves = 0
		repo.failures = MaxCommandAttempts

		_, err := f.svc.Confirm(context.Background(), c.ID(), f.lawyer.ID)
		assert.ErrorIs(t, err, model.ErrConcurrencyConflict)
		assert.Equal(t, MaxCommandAttempts, repo.saves)
	})
}

func TestConsultationService_CancelRacesConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.book(t, f.client)

	var wg sync.WaitGroup
	var cancelErr, confirmErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = f.svc.Cancel(ctx, c.ID(), f.client.ID, "changed plans")
	}()
	go func() {
		defer wg.Done()
		_, confirmErr = f.svc.Confirm(ctx, c.ID(), f.lawyer.ID)
	}()
	wg.Wait()

	require.NoError(t, cancelErr)
	if confirmErr != nil {
		assert.ErrorIs(t, confirmErr, model.ErrInvalidTransition)
	}

	stored, err := f.store.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusCancelled, stored.Status())

	records, err := f.store.ListByConsultation(ctx, c.ID())
	require.NoError(t, err)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Version, "event versions must not repeat")
	}
}

func TestConsultationService_CancelByStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.book(t, f.client)

	_, err := f.svc.Cancel(ctx, c.ID(), f.client2.ID, "not mine")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	stored, err := f.store.FindByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, model.ConsultationStatusPending, stored.Status())
	assert.Len(t, f.store.Events(), 1)
}

func TestConsultationService_Rate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.book(t, f.client)

	_, err := f.svc.Rate(ctx, c.ID(), f.client.ID, 5, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	for _, op := range []func(context.Context, uuid.UUID, uuid.UUID) (*model.Consultation, error){
		f.svc.Confirm, f.svc.Start, f.svc.Complete,
	} {
		_, err := op(ctx, c.ID(), f.lawyer.ID)
		require.NoError(t, err)
	}

	_, err = f.svc.Rate(ctx, c.ID(), f.lawyer.ID, 5, "")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.svc.Rate(ctx, c.ID(), f.client.ID, 6, "")
	assert.ErrorIs(t, err, model.ErrInvalidRating)

	_, err = f.svc.Rate(ctx, c.ID(), f.client.ID, 4, "ok")
	require.NoError(t, err)

	_, err = f.svc.Rate(ctx, c.ID(), f.client.ID, 5, "changed my mind")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestConsultationService_ListValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown := model.ConsultationStatus("archived")

	cases := []struct {
		name   string
		limit  int
		offset int
		status *model.ConsultationStatus
	}{
		{"zero limit", 0, 0, nil},
		{"limit above max", MaxPageSize + 1, 0, nil},
		{"negative offset", 10, -1, nil},
		{"unknown status", 10, 0, &unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ListByClient(ctx, f.client.ID, f.client.ID, tc.status, tc.limit, tc.offset)
			assert.ErrorIs(t, err, model.ErrInvalidQuery)
			_, err = f.svc.ListByLawyer(ctx, f.lawyer.ID, f.lawyer.ID, tc.status, tc.limit, tc.offset)
			assert.ErrorIs(t, err, model.ErrInvalidQuery)
		})
	}

	_, err := f.svc.ListPendingByLawyer(ctx, f.lawyer.ID, f.lawyer.ID, 0)
	assert.ErrorIs(t, err, model.ErrInvalidQuery)

	_, err = f.svc.ListByClient(ctx, f.client2.ID, f.client.ID, nil, 10, 0)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestConsultationService_ListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.book(t, f.client)
	}
	other := f.book(t, f.client2)
	_, err := f.svc.Cancel(ctx, other.ID(), f.client2.ID, "no longer needed")
	require.NoError(t, err)

	page, err := f.svc.ListByClient(ctx, f.client.ID, f.client.ID, nil, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 1)

	page, err = f.svc.ListByClient(ctx, f.client.ID, f.client.ID, nil, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Empty(t, page.Items)

	cancelled := model.ConsultationStatusCancelled
	page, err = f.svc.ListByLawyer(ctx, f.lawyer.ID, f.lawyer.ID, &cancelled, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, other.ID(), page.Items[0].ID())

	pending, err := f.svc.ListPendingByLawyer(ctx, f.lawyer.ID, f.lawyer.ID, 3)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

// Воспроизведение журнала событий: у юриста никогда нет двух активных консультаций
func TestConsultationService_EventLogKeepsSingleActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const clients = 6
	ids := make([]uuid.UUID, 0, clients)
	parties := make(map[uuid.UUID]uuid.UUID)
	for i := 0; i < clients; i++ {
		client, err := f.users.RegisterUser(ctx, int64(5000+i), "", fmt.Sprintf("c%d", i), "")
		require.NoError(t, err)
		c := f.book(t, client)
		ids = append(ids, c.ID())
		parties[c.ID()] = client.ID
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 60; i++ {
				id := ids[rng.Intn(len(ids))]
				switch rng.Intn(5) {
				case 0:
					_, _ = f.svc.Confirm(ctx, id, f.lawyer.ID)
				case 1:
					_, _ = f.svc.Start(ctx, id, f.lawyer.ID)
				case 2:
					_, _ = f.svc.Complete(ctx, id, f.lawyer.ID)
				case 3:
					if rng.Intn(4) == 0 {
						_, _ = f.svc.Cancel(ctx, id, parties[id], "random")
					}
				case 4:
					_, _ = f.svc.Rate(ctx, id, parties[id], 1+rng.Intn(5), "")
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	active := make(map[uuid.UUID]bool)
	for _, rec := range f.store.Events() {
		switch rec.Name {
		case model.EventConsultationConfirmed, model.EventConsultationStarted:
			active[rec.ConsultationID] = true
		case model.EventConsultationCompleted, model.EventConsultationCancelled:
			delete(active, rec.ConsultationID)
		}
		require.LessOrEqual(t, len(active), 1, "two active consultations after event %s", rec.ID)
	}
}
