package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventName string

const (
	EventConsultationBooked    EventName = "consultation.booked"
	EventConsultationConfirmed EventName = "consultation.confirmed"
	EventConsultationStarted   EventName = "consultation.started"
	EventConsultationCompleted EventName = "consultation.completed"
	EventConsultationCancelled EventName = "consultation.cancelled"
	EventConsultationRated     EventName = "consultation.rated"
)

// EventMeta общие поля всех событий консультации.
// Version - версия агрегата после изменения, породившего событие.
type EventMeta struct {
	ID             uuid.UUID `json:"id"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	Version        int64     `json:"version"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Event неизменяемый факт об изменении консультации
type Event interface {
	Name() EventName
	Meta() EventMeta
}

func (m EventMeta) Meta() EventMeta { return m }

type ConsultationBooked struct {
	EventMeta
	ClientID  uuid.UUID        `json:"client_id"`
	LawyerID  uuid.UUID        `json:"lawyer_id"`
	Type      ConsultationType `json:"type"`
	Amount    int64            `json:"amount"`
	Currency  string           `json:"currency"`
	SlotStart *time.Time       `json:"slot_start,omitempty"`
	SlotEnd   *time.Time       `json:"slot_end,omitempty"`
}

func (ConsultationBooked) Name() EventName { return EventConsultationBooked }

type ConsultationConfirmed struct {
	EventMeta
	LawyerID uuid.UUID `json:"lawyer_id"`
	At       time.Time `json:"at"`
}

func (ConsultationConfirmed) Name() EventName { return EventConsultationConfirmed }

type ConsultationStarted struct {
	EventMeta
	ClientID uuid.UUID `json:"client_id"`
	LawyerID uuid.UUID `json:"lawyer_id"`
	At       time.Time `json:"at"`
}

func (ConsultationStarted) Name() EventName { return EventConsultationStarted }

type ConsultationCompleted struct {
	EventMeta
	At time.Time `json:"at"`
}

func (ConsultationCompleted) Name() EventName { return EventConsultationCompleted }

type ConsultationCancelled struct {
	EventMeta
	ClientID    uuid.UUID `json:"client_id"`
	LawyerID    uuid.UUID `json:"lawyer_id"`
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

func (ConsultationCancelled) Name() EventName { return EventConsultationCancelled }

type ConsultationRated struct {
	EventMeta
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

func (ConsultationRated) Name() EventName { return EventConsultationRated }

// DecodeEvent восстанавливает событие из outbox по имени и JSON
func DecodeEvent(name EventName, payload []byte) (Event, error) {
	var (
		event Event
		err   error
	)

	switch name {
	case EventConsultationBooked:
		var e ConsultationBooked
		err = json.Unmarshal(payload, &e)
		event = e
	case EventConsultationConfirmed:
		var e ConsultationConfirmed
		err = json.Unmarshal(payload, &e)
		event = e
	case EventConsultationStarted:
		var e ConsultationStarted
		err = json.Unmarshal(payload, &e)
		event = e
	case EventConsultationCompleted:
		var e ConsultationCompleted
		err = json.Unmarshal(payload, &e)
		event = e
	case EventConsultationCancelled:
		var e ConsultationCancelled
		err = json.Unmarshal(payload, &e)
		event = e
	case EventConsultationRated:
		var e ConsultationRated
		err = json.Unmarshal(payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return event, nil
}
