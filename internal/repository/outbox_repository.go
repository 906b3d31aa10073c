package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository очередь событий консультаций на доставку
type OutboxRepository struct {
	*base.Repository
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{Repository: base.NewRepository(pool)}
}

// FetchUnprocessed получает недоставленные события, готовые к очередной попытке
func (r *OutboxRepository) FetchUnprocessed(ctx context.Context, limit int) ([]model.OutboxRecord, error) {
	query := `
		SELECT id, consultation_id, name, payload, version, occurred_at, attempts, last_error
		FROM consultation_events
		WHERE processed_at IS NULL AND next_attempt_at <= now()
		ORDER BY occurred_at ASC, version ASC
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed events: %w", err)
	}
	defer rows.Close()

	var records []model.OutboxRecord
	for rows.Next() {
		var (
			rec  model.OutboxRecord
			name string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.ConsultationID,
			&name,
			&rec.Payload,
			&rec.Version,
			&rec.OccurredAt,
			&rec.Attempts,
			&rec.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Name = model.EventName(name)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return records, nil
}

// MarkProcessed помечает событие доставленным
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE consultation_events
		SET processed_at = $2
		WHERE id = $1 AND processed_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s not found or already processed", id)
	}
	return nil
}

// MarkFailed записывает неудачную попытку и откладывает следующую
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time) error {
	_, err := r.ExecAffected(ctx, `
		UPDATE consultation_events
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1
	`, id, reason, retryAt)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

// ListByConsultation возвращает журнал событий консультации по порядку версий
func (r *OutboxRepository) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]model.OutboxRecord, error) {
	rows, err := r.Query(ctx, `
		SELECT id, consultation_id, name, payload, version, occurred_at, attempts, last_error, processed_at
		FROM consultation_events
		WHERE consultation_id = $1
		ORDER BY version ASC, occurred_at ASC
	`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("get events by consultation: %w", err)
	}
	defer rows.Close()

	var records []model.OutboxRecord
	for rows.Next() {
		var (
			rec  model.OutboxRecord
			name string
		)
		if err := rows.Scan(&rec.ID, &rec.ConsultationID, &name, &rec.Payload, &rec.Version,
			&rec.OccurredAt, &rec.Attempts, &rec.LastError, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Name = model.EventName(name)
		records = append(records, rec)
	}

	return records, rows.Err()
}
