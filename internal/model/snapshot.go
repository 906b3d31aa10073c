package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConsultationSnapshot плоское представление агрегата для хранилища
type ConsultationSnapshot struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	LawyerID           uuid.UUID
	Type               ConsultationType
	SlotStart          *time.Time
	SlotEnd            *time.Time
	PriceAmount        int64
	Currency           string
	Status             ConsultationStatus
	Rating             *int
	Review             string
	RatedAt            *time.Time
	CancelledBy        *uuid.UUID
	CancellationReason string
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	Version            int64
}

// Snapshot снимает текущее состояние агрегата
func (c *Consultation) Snapshot() ConsultationSnapshot {
	s := ConsultationSnapshot{
		ID:                 c.id,
		ClientID:           c.clientID,
		LawyerID:           c.lawyerID,
		Type:               c.consultationType,
		PriceAmount:        c.price.amount,
		Currency:           c.price.currency,
		Status:             c.status,
		CancelledBy:        c.CancelledBy(),
		CancellationReason: c.cancellationReason,
		CreatedAt:          c.createdAt,
		ConfirmedAt:        copyTime(c.confirmedAt),
		StartedAt:          copyTime(c.startedAt),
		CompletedAt:        copyTime(c.completedAt),
		CancelledAt:        copyTime(c.cancelledAt),
		Version:            c.version,
	}
	if c.timeSlot != nil {
		start, end := c.timeSlot.start, c.timeSlot.end
		s.SlotStart = &start
		s.SlotEnd = &end
	}
	if c.rating != nil {
		score := c.rating.Score
		ratedAt := c.rating.RatedAt
		s.Rating = &score
		s.Review = c.rating.Review
		s.RatedAt = &ratedAt
	}
	return s
}

// RestoreConsultation поднимает агрегат из хранилища, проверяя инварианты
func RestoreConsultation(s ConsultationSnapshot) (*Consultation, error) {
	if s.ID == uuid.Nil {
		return nil, fmt.Errorf("restore consultation: empty id")
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("restore consultation %s: unknown status %q", s.ID, s.Status)
	}
	price, err := NewPrice(s.PriceAmount, s.Currency)
	if err != nil {
		return nil, fmt.Errorf("restore consultation %s: %w", s.ID, err)
	}

	var slot *TimeSlot
	if s.SlotStart != nil || s.SlotEnd != nil {
		if s.SlotStart == nil || s.SlotEnd == nil {
			return nil, fmt.Errorf("restore consultation %s: partial time slot", s.ID)
		}
		ts, err := NewTimeSlot(*s.SlotStart, *s.SlotEnd)
		if err != nil {
			return nil, fmt.Errorf("restore consultation %s: %w", s.ID, err)
		}
		slot = &ts
	}
	if err := validateSchedule(s.Type, slot); err != nil {
		return nil, fmt.Errorf("restore consultation %s: %w", s.ID, err)
	}

	c := &Consultation{
		id:                 s.ID,
		clientID:           s.ClientID,
		lawyerID:           s.LawyerID,
		consultationType:   s.Type,
		timeSlot:           slot,
		price:              price,
		status:             s.Status,
		cancellationReason: s.CancellationReason,
		createdAt:          s.CreatedAt,
		confirmedAt:        copyTime(s.ConfirmedAt),
		startedAt:          copyTime(s.StartedAt),
		completedAt:        copyTime(s.CompletedAt),
		cancelledAt:        copyTime(s.CancelledAt),
		version:            s.Version,
	}
	if s.CancelledBy != nil {
		by := *s.CancelledBy
		c.cancelledBy = &by
	}
	if s.Rating != nil {
		if s.Status != ConsultationStatusCompleted {
			return nil, fmt.Errorf("restore consultation %s: rating on %s consultation", s.ID, s.Status)
		}
		r := &Rating{Score: *s.Rating, Review: s.Review}
		if s.RatedAt != nil {
			r.RatedAt = *s.RatedAt
		}
		c.rating = r
	}

	return c, nil
}
