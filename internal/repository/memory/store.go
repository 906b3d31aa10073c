// Package memory хранилище в памяти процесса с тем же контрактом, что и PostgreSQL-репозитории.
// Используется в тестах и при DB_DSN=memory для локального запуска.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
)

type outboxEntry struct {
	record        model.OutboxRecord
	nextAttemptAt time.Time
}

// Store потокобезопасное хранилище консультаций, событий, оплат и пользователей
type Store struct {
	mu            sync.RWMutex
	consultations map[uuid.UUID]model.ConsultationSnapshot
	outbox        []*outboxEntry
	payments      map[uuid.UUID]model.Payment
	users         map[uuid.UUID]model.User
	now           func() time.Time
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		consultations: make(map[uuid.UUID]model.ConsultationSnapshot),
		payments:      make(map[uuid.UUID]model.Payment),
		users:         make(map[uuid.UUID]model.User),
		now:           time.Now,
	}
}

// ========================
// Consultations
// ========================

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.consultations[id]
	if !ok {
		return nil, nil
	}
	return model.RestoreConsultation(snap)
}

func (s *Store) FindActiveByLawyer(_ context.Context, lawyerID uuid.UUID) (*model.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.consultations {
		if snap.LawyerID == lawyerID && snap.Status.IsActive() {
			return model.RestoreConsultation(snap)
		}
	}
	return nil, nil
}

func (s *Store) FindByClient(_ context.Context, clientID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error) {
	return s.page(func(snap model.ConsultationSnapshot) bool {
		return snap.ClientID == clientID && (status == nil || snap.Status == *status)
	}, limit, offset)
}

func (s *Store) FindByLawyer(_ context.Context, lawyerID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error) {
	return s.page(func(snap model.ConsultationSnapshot) bool {
		return snap.LawyerID == lawyerID && (status == nil || snap.Status == *status)
	}, limit, offset)
}

func (s *Store) FindPendingByLawyer(_ context.Context, lawyerID uuid.UUID, limit int) ([]*model.Consultation, error) {
	matched := s.filter(func(snap model.ConsultationSnapshot) bool {
		return snap.LawyerID == lawyerID && snap.Status == model.ConsultationStatusPending
	}, true)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return restoreAll(matched)
}

func (s *Store) FindPendingCreatedBefore(_ context.Context, before time.Time, limit int) ([]*model.Consultation, error) {
	matched := s.filter(func(snap model.ConsultationSnapshot) bool {
		return snap.Status == model.ConsultationStatusPending && snap.CreatedAt.Before(before)
	}, true)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return restoreAll(matched)
}

// Save повторяет поведение PostgreSQL: сверка версии и уникальность активной консультации юриста
func (s *Store) Save(_ context.Context, c *model.Consultation) (*model.Consultation, error) {
	snap := c.Snapshot()
	records, err := model.OutboxRecords(c)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.consultations[snap.ID]
	switch {
	case snap.Version == 0 && exists:
		return nil, fmt.Errorf("save consultation %s: %w: already exists", snap.ID, model.ErrConcurrencyConflict)
	case snap.Version > 0 && !exists:
		return nil, fmt.Errorf("save consultation %s: %w", snap.ID, model.ErrNotFound)
	case snap.Version > 0 && stored.Version != snap.Version:
		return nil, fmt.Errorf("save consultation %s: %w: expected version %d, stored %d",
			snap.ID, model.ErrConcurrencyConflict, snap.Version, stored.Version)
	}

	if snap.Status.IsActive() {
		for id, other := range s.consultations {
			if id != snap.ID && other.LawyerID == snap.LawyerID && other.Status.IsActive() {
				return nil, fmt.Errorf("%w: lawyer %s", model.ErrLawyerBusy, snap.LawyerID)
			}
		}
	}

	snap.Version++
	s.consultations[snap.ID] = snap
	now := s.now()
	for _, rec := range records {
		s.outbox = append(s.outbox, &outboxEntry{record: rec, nextAttemptAt: now})
	}

	c.MarkPersisted(snap.Version)
	return c, nil
}

func (s *Store) filter(match func(model.ConsultationSnapshot) bool, oldestFirst bool) []model.ConsultationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.ConsultationSnapshot
	for _, snap := range s.consultations {
		if match(snap) {
			matched = append(matched, snap)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if oldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return matched
}

func (s *Store) page(match func(model.ConsultationSnapshot) bool, limit, offset int) ([]*model.Consultation, int, error) {
	matched := s.filter(match, false)
	total := len(matched)

	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	list, err := restoreAll(matched[offset:end])
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func restoreAll(snaps []model.ConsultationSnapshot) ([]*model.Consultation, error) {
	out := make([]*model.Consultation, 0, len(snaps))
	for _, snap := range snaps {
		c, err := model.RestoreConsultation(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ========================
// Outbox
// ========================

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]model.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var records []model.OutboxRecord
	for _, e := range s.outbox {
		if len(records) == limit {
			break
		}
		if e.record.ProcessedAt == nil && !e.nextAttemptAt.After(now) {
			records = append(records, e.record)
		}
	}
	return records, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.outbox {
		if e.record.ID == id && e.record.ProcessedAt == nil {
			t := at
			e.record.ProcessedAt = &t
			return nil
		}
	}
	return fmt.Errorf("event %s not found or already processed", id)
}

func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, reason string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.outbox {
		if e.record.ID == id {
			e.record.Attempts++
			e.record.LastError = reason
			e.nextAttemptAt = retryAt
			return nil
		}
	}
	return nil
}

func (s *Store) ListByConsultation(_ context.Context, consultationID uuid.UUID) ([]model.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.OutboxRecord
	for _, e := range s.outbox {
		if e.record.ConsultationID == consultationID {
			records = append(records, e.record)
		}
	}
	return records, nil
}

// Events весь журнал событий в порядке записи
func (s *Store) Events() []model.OutboxRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.OutboxRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		records = append(records, e.record)
	}
	return records
}

// ========================
// Payments
// ========================

func (s *Store) Upsert(_ context.Context, p *model.Payment) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.payments[p.ConsultationID]; ok && stored.Succeeded() {
		return &stored, nil
	}
	s.payments[p.ConsultationID] = *p
	stored := *p
	return &stored, nil
}

func (s *Store) GetByConsultationID(_ context.Context, consultationID uuid.UUID) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[consultationID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ========================
// Users
// ========================

// Users представление хранилища с контрактом репозитория пользователей
func (s *Store) Users() *Users {
	return &Users{store: s}
}

// Users отдельный тип: GetByID пользователей конфликтует по имени с консультациями
type Users struct {
	store *Store
}

func (u *Users) Create(_ context.Context, user *model.User) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Currency == "" {
		user.Currency = model.DefaultCurrency
	}
	if user.TelegramID != 0 {
		for _, other := range u.store.users {
			if other.TelegramID == user.TelegramID {
				return fmt.Errorf("create user: telegram id %d already registered", user.TelegramID)
			}
		}
	}
	user.CreatedAt = u.store.now()
	u.store.users[user.ID] = *user
	return nil
}

func (u *Users) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	for _, user := range u.store.users {
		if user.TelegramID == telegramID {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (u *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	user, ok := u.store.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (u *Users) Update(_ context.Context, user *model.User) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	stored, ok := u.store.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	updated := *user
	updated.CreatedAt = stored.CreatedAt
	u.store.users[user.ID] = updated
	return nil
}

func (u *Users) GetLawyers(_ context.Context, limit, offset int) ([]*model.User, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	var lawyers []*model.User
	for _, user := range u.store.users {
		if user.IsLawyer {
			found := user
			lawyers = append(lawyers, &found)
		}
	}
	sort.Slice(lawyers, func(i, j int) bool {
		if lawyers[i].FirstName != lawyers[j].FirstName {
			return lawyers[i].FirstName < lawyers[j].FirstName
		}
		return lawyers[i].ID.String() < lawyers[j].ID.String()
	})

	if offset >= len(lawyers) {
		return nil, nil
	}
	end := offset + limit
	if end > len(lawyers) {
		end = len(lawyers)
	}
	return lawyers[offset:end], nil
}
