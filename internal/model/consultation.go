package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ограничения оценки
const (
	MinRating       = 1
	MaxRating       = 5
	MaxReviewLength = 2000
)

// transitions допустимые переходы статусов. Всё, чего нет в таблице, запрещено
var transitions = map[ConsultationStatus][]ConsultationStatus{
	ConsultationStatusPending:    {ConsultationStatusConfirmed, ConsultationStatusCancelled},
	ConsultationStatusConfirmed:  {ConsultationStatusInProgress, ConsultationStatusCancelled},
	ConsultationStatusInProgress: {ConsultationStatusCompleted, ConsultationStatusCancelled},
}

// CanTransition проверяет переход по таблице состояний
func CanTransition(from, to ConsultationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rating оценка клиента после завершённой консультации
type Rating struct {
	Score   int
	Review  string
	RatedAt time.Time
}

// Consultation агрегат консультации.
// Поля закрыты: статус меняется только методами переходов.
type Consultation struct {
	id                 uuid.UUID
	clientID           uuid.UUID
	lawyerID           uuid.UUID
	consultationType   ConsultationType
	timeSlot           *TimeSlot
	price              Price
	status             ConsultationStatus
	rating             *Rating
	cancelledBy        *uuid.UUID
	cancellationReason string
	createdAt          time.Time
	confirmedAt        *time.Time
	startedAt          *time.Time
	completedAt        *time.Time
	cancelledAt        *time.Time
	version            int64

	events []Event
}

// BookParams входные данные для записи на консультацию
type BookParams struct {
	ClientID uuid.UUID
	LawyerID uuid.UUID
	Type     ConsultationType
	Slot     *TimeSlot
	Price    Price
}

// Book создаёт консультацию в статусе Pending
func Book(p BookParams, now time.Time) (*Consultation, error) {
	if p.ClientID == uuid.Nil || p.LawyerID == uuid.Nil {
		return nil, fmt.Errorf("%w: client and lawyer are required", ErrInvalidConsultation)
	}
	if p.ClientID == p.LawyerID {
		return nil, fmt.Errorf("%w: client and lawyer must differ", ErrInvalidConsultation)
	}
	if err := validateSchedule(p.Type, p.Slot); err != nil {
		return nil, err
	}
	if p.Price.currency == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConsultation, ErrInvalidCurrency)
	}
	if p.Price.amount < 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConsultation, ErrInvalidAmount)
	}

	c := &Consultation{
		id:               uuid.New(),
		clientID:         p.ClientID,
		lawyerID:         p.LawyerID,
		consultationType: p.Type,
		price:            p.Price,
		status:           ConsultationStatusPending,
		createdAt:        now.UTC(),
	}
	if p.Slot != nil {
		slot := *p.Slot
		c.timeSlot = &slot
	}

	booked := ConsultationBooked{
		EventMeta: c.newEventMeta(now),
		ClientID:  c.clientID,
		LawyerID:  c.lawyerID,
		Type:      c.consultationType,
		Amount:    c.price.amount,
		Currency:  c.price.currency,
	}
	if c.timeSlot != nil {
		start, end := c.timeSlot.start, c.timeSlot.end
		booked.SlotStart = &start
		booked.SlotEnd = &end
	}
	c.record(booked)

	return c, nil
}

func validateSchedule(t ConsultationType, slot *TimeSlot) error {
	switch t {
	case ConsultationTypeScheduled:
		if slot == nil {
			return fmt.Errorf("%w: scheduled consultation requires a time slot", ErrInvalidConsultation)
		}
		if !slot.end.After(slot.start) {
			return fmt.Errorf("%w: %w", ErrInvalidConsultation, ErrInvalidTimeSlot)
		}
	case ConsultationTypeEmergency:
		if slot != nil {
			return fmt.Errorf("%w: emergency consultation has no time slot", ErrInvalidConsultation)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConsultation, t)
	}
	return nil
}

// Confirm подтверждает консультацию. Только назначенный юрист
func (c *Consultation) Confirm(caller uuid.UUID, now time.Time) error {
	if caller != c.lawyerID {
		return fmt.Errorf("%w: only the assigned lawyer can confirm", ErrUnauthorized)
	}
	if err := c.ensureTransition(ConsultationStatusConfirmed); err != nil {
		return err
	}

	at := now.UTC()
	c.status = ConsultationStatusConfirmed
	c.confirmedAt = &at
	c.record(ConsultationConfirmed{
		EventMeta: c.newEventMeta(now),
		LawyerID:  c.lawyerID,
		At:        at,
	})
	return nil
}

// Start начинает консультацию. Проверка занятости юриста выполняется сервисом
// через ConflictsWith, здесь только права и статус.
func (c *Consultation) Start(caller uuid.UUID, now time.Time) error {
	if caller != c.lawyerID {
		return fmt.Errorf("%w: only the assigned lawyer can start", ErrUnauthorized)
	}
	if err := c.ensureTransition(ConsultationStatusInProgress); err != nil {
		return err
	}

	at := now.UTC()
	c.status = ConsultationStatusInProgress
	c.startedAt = &at
	c.record(ConsultationStarted{
		EventMeta: c.newEventMeta(now),
		ClientID:  c.clientID,
		LawyerID:  c.lawyerID,
		At:        at,
	})
	return nil
}

// Complete завершает идущую консультацию
func (c *Consultation) Complete(caller uuid.UUID, now time.Time) error {
	if caller != c.lawyerID {
		return fmt.Errorf("%w: only the assigned lawyer can complete", ErrUnauthorized)
	}
	if err := c.ensureTransition(ConsultationStatusCompleted); err != nil {
		return err
	}

	at := now.UTC()
	c.status = ConsultationStatusCompleted
	c.completedAt = &at
	c.record(ConsultationCompleted{
		EventMeta: c.newEventMeta(now),
		At:        at,
	})
	return nil
}

// Cancel отменяет консультацию. Может любая из сторон, причина обязательна
func (c *Consultation) Cancel(caller uuid.UUID, reason string, now time.Time) error {
	if !c.IsParty(caller) {
		return fmt.Errorf("%w: only a party can cancel", ErrUnauthorized)
	}
	if err := c.ensureTransition(ConsultationStatusCancelled); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}

	at := now.UTC()
	by := caller
	c.status = ConsultationStatusCancelled
	c.cancelledBy = &by
	c.cancellationReason = reason
	c.cancelledAt = &at
	c.record(ConsultationCancelled{
		EventMeta:   c.newEventMeta(now),
		ClientID:    c.clientID,
		LawyerID:    c.lawyerID,
		CancelledBy: by,
		Reason:      reason,
		At:          at,
	})
	return nil
}

// Rate ставит оценку. Только клиент, только после завершения, только один раз
func (c *Consultation) Rate(caller uuid.UUID, score int, review string, now time.Time) error {
	if caller != c.clientID {
		return fmt.Errorf("%w: only the client can rate", ErrUnauthorized)
	}
	if c.status != ConsultationStatusCompleted {
		return fmt.Errorf("%w: cannot rate %s consultation", ErrInvalidTransition, c.status)
	}
	if c.rating != nil {
		return fmt.Errorf("%w: consultation already rated", ErrInvalidTransition)
	}
	if score < MinRating || score > MaxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, score)
	}
	review = strings.TrimSpace(review)
	if len([]rune(review)) > MaxReviewLength {
		return fmt.Errorf("%w: review longer than %d characters", ErrInvalidRating, MaxReviewLength)
	}

	c.rating = &Rating{Score: score, Review: review, RatedAt: now.UTC()}
	c.record(ConsultationRated{
		EventMeta: c.newEventMeta(now),
		Rating:    score,
		Review:    review,
	})
	return nil
}

// ConflictsWith сообщает, что active - другая активная консультация того же юриста
func (c *Consultation) ConflictsWith(active *Consultation) bool {
	if active == nil || active.id == c.id {
		return false
	}
	return active.lawyerID == c.lawyerID && active.status.IsActive()
}

// IsParty проверяет, что пользователь - клиент или юрист консультации
func (c *Consultation) IsParty(userID uuid.UUID) bool {
	return userID != uuid.Nil && (userID == c.clientID || userID == c.lawyerID)
}

func (c *Consultation) ensureTransition(to ConsultationStatus) error {
	if !CanTransition(c.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.status, to)
	}
	return nil
}

func (c *Consultation) newEventMeta(now time.Time) EventMeta {
	return EventMeta{
		ID:             uuid.New(),
		ConsultationID: c.id,
		Version:        c.version + 1,
		OccurredAt:     now.UTC(),
	}
}

func (c *Consultation) record(e Event) {
	c.events = append(c.events, e)
}

// PendingEvents события, ещё не сохранённые в outbox
func (c *Consultation) PendingEvents() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// MarkPersisted вызывается репозиторием после успешной записи
func (c *Consultation) MarkPersisted(version int64) {
	c.version = version
	c.events = nil
}

func (c *Consultation) ID() uuid.UUID { return c.id }
func (c *Consultation) ClientID() uuid.UUID { return c.clientID }
func (c *Consultation) LawyerID() uuid.UUID { return c.lawyerID }
func (c *Consultation) Type() ConsultationType { return c.consultationType }
func (c *Consultation) Price() Price { return c.price }
func (c *Consultation) Status() ConsultationStatus { return c.status }
func (c *Consultation) CancellationReason() string { return c.cancellationReason }
func (c *Consultation) CreatedAt() time.Time { return c.createdAt }
func (c *Consultation) Version() int64 { return c.version }
func (c *Consultation) ConfirmedAt() *time.Time { return copyTime(c.confirmedAt) }
func (c *Consultation) StartedAt() *time.Time { return copyTime(c.startedAt) }
func (c *Consultation) CompletedAt() *time.Time { return copyTime(c.completedAt) }
func (c *Consultation) CancelledAt() *time.Time { return copyTime(c.cancelledAt) }
func (c *Consultation) IsRated() bool { return c.rating != nil }

// TimeSlot слот или nil для срочной консультации
func (c *Consultation) TimeSlot() *TimeSlot {
	if c.timeSlot == nil {
		return nil
	}
	slot := *c.timeSlot
	return &slot
}

// Rating оценка или nil
func (c *Consultation) Rating() *Rating {
	if c.rating == nil {
		return nil
	}
	r := *c.rating
	return &r
}

// CancelledBy кто отменил, nil если не отменена
func (c *Consultation) CancelledBy() *uuid.UUID {
	if c.cancelledBy == nil {
		return nil
	}
	id := *c.cancelledBy
	return &id
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
