package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxRecord событие, сохранённое вместе с агрегатом и ожидающее доставки
type OutboxRecord struct {
	ID             uuid.UUID
	ConsultationID uuid.UUID
	Name           EventName
	Payload        []byte
	Version        int64
	OccurredAt     time.Time
	Attempts       int
	LastError      string
	ProcessedAt    *time.Time
}

// NewOutboxRecord сериализует событие для outbox
func NewOutboxRecord(e Event) (OutboxRecord, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return OutboxRecord{}, fmt.Errorf("marshal %s: %w", e.Name(), err)
	}
	meta := e.Meta()
	return OutboxRecord{
		ID:             meta.ID,
		ConsultationID: meta.ConsultationID,
		Name:           e.Name(),
		Payload:        payload,
		Version:        meta.Version,
		OccurredAt:     meta.OccurredAt,
	}, nil
}

// OutboxRecords сериализует все несохранённые события агрегата
func OutboxRecords(c *Consultation) ([]OutboxRecord, error) {
	events := c.PendingEvents()
	records := make([]OutboxRecord, 0, len(events))
	for _, e := range events {
		rec, err := NewOutboxRecord(e)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Decode восстанавливает событие
func (r OutboxRecord) Decode() (Event, error) {
	return DecodeEvent(r.Name, r.Payload)
}
