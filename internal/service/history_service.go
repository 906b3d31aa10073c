package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
)

// HistoryService журнал событий консультации для её участников
type HistoryService struct {
	consultations *ConsultationService
	log           EventLog
}

func NewHistoryService(consultations *ConsultationService, log EventLog) *HistoryService {
	return &HistoryService{consultations: consultations, log: log}
}

// History события в порядке версий. Доступ как у Get
func (s *HistoryService) History(ctx context.Context, id, caller uuid.UUID) ([]model.Event, error) {
	if _, err := s.consultations.Get(ctx, id, caller); err != nil {
		return nil, err
	}

	records, err := s.log.ListByConsultation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]model.Event, 0, len(records))
	for _, rec := range records {
		e, err := rec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", rec.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}
