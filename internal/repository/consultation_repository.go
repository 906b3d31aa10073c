package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActiveLawyerConstraint частичный уникальный индекс "одна активная консультация на юриста"
const ActiveLawyerConstraint = "consultations_lawyer_active_uidx"

const consultationColumns = `
	id, client_id, lawyer_id, type, slot_start, slot_end, price_amount, currency, status,
	rating, review, rated_at, cancelled_by, cancellation_reason,
	created_at, confirmed_at, started_at, completed_at, cancelled_at, version
`

type ConsultationRepository struct {
	*base.Repository
}

func NewConsultationRepository(pool *pgxpool.Pool) *ConsultationRepository {
	return &ConsultationRepository{Repository: base.NewRepository(pool)}
}

// FindByID получает консультацию по ID, nil если не найдена
func (r *ConsultationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	c, err := scanConsultation(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get consultation by id: %w", err)
	}

	return c, nil
}

// FindActiveByLawyer получает подтверждённую или идущую консультацию юриста
func (r *ConsultationRepository) FindActiveByLawyer(ctx context.Context, lawyerID uuid.UUID) (*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE lawyer_id = $1 AND status IN ('confirmed', 'in_progress')
		LIMIT 1
	`

	c, err := scanConsultation(r.QueryRow(ctx, query, lawyerID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active consultation by lawyer: %w", err)
	}

	return c, nil
}

// FindByClient получает страницу консультаций клиента и общее количество
func (r *ConsultationRepository) FindByClient(ctx context.Context, clientID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error) {
	return r.findByParty(ctx, "client_id", clientID, status, limit, offset)
}

// FindByLawyer получает страницу консультаций юриста и общее количество
func (r *ConsultationRepository) FindByLawyer(ctx context.Context, lawyerID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error) {
	return r.findByParty(ctx, "lawyer_id", lawyerID, status, limit, offset)
}

// column приходит только из констант выше
func (r *ConsultationRepository) findByParty(ctx context.Context, column string, partyID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error) {
	where := column + ` = $1`
	args := []interface{}{partyID}
	if status != nil {
		where += ` AND status = $2`
		args = append(args, string(*status))
	}

	var total int
	countQuery := `SELECT count(*) FROM consultations WHERE ` + where
	if err := r.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count consultations by %s: %w", column, err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM consultations
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, consultationColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("get consultations by %s: %w", column, err)
	}
	defer rows.Close()

	consultations, err := collectConsultations(rows)
	if err != nil {
		return nil, 0, err
	}

	return consultations, total, nil
}

// FindPendingByLawyer получает ожидающие подтверждения консультации юриста, старые первыми
func (r *ConsultationRepository) FindPendingByLawyer(ctx context.Context, lawyerID uuid.UUID, limit int) ([]*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE lawyer_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, lawyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending consultations by lawyer: %w", err)
	}
	defer rows.Close()

	return collectConsultations(rows)
}

// FindPendingCreatedBefore получает pending консультации, созданные раньше before
func (r *ConsultationRepository) FindPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get stale pending consultations: %w", err)
	}
	defer rows.Close()

	return collectConsultations(rows)
}

// Save сохраняет агрегат и его события в одной транзакции.
// Новый агрегат (version 0) вставляется, существующий обновляется по версии.
func (r *ConsultationRepository) Save(ctx context.Context, c *model.Consultation) (*model.Consultation, error) {
	s := c.Snapshot()
	records, err := model.OutboxRecords(c)
	if err != nil {
		return nil, err
	}

	err = r.InTx(ctx, func(tx pgx.Tx) error {
		if s.Version == 0 {
			if err := insertConsultation(ctx, tx, s); err != nil {
				return err
			}
		} else {
			if err := updateConsultation(ctx, tx, s); err != nil {
				return err
			}
		}
		return insertOutbox(ctx, tx, records)
	})
	if err != nil {
		if base.IsUniqueViolation(err, ActiveLawyerConstraint) {
			return nil, fmt.Errorf("%w: lawyer %s", model.ErrLawyerBusy, s.LawyerID)
		}
		// Параллельная вставка агрегата с тем же ID
		if base.IsUniqueViolation(err, "consultations_pkey") {
			return nil, fmt.Errorf("%w: consultation %s already exists", model.ErrConcurrencyConflict, s.ID)
		}
		return nil, fmt.Errorf("save consultation %s: %w", s.ID, err)
	}

	c.MarkPersisted(s.Version + 1)
	return c, nil
}

func insertConsultation(ctx context.Context, tx pgx.Tx, s model.ConsultationSnapshot) error {
	query := `
		INSERT INTO consultations (
			id, client_id, lawyer_id, type, slot_start, slot_end, price_amount, currency, status,
			rating, review, rated_at, cancelled_by, cancellation_reason,
			created_at, confirmed_at, started_at, completed_at, cancelled_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)
	`

	_, err := tx.Exec(ctx, query,
		s.ID, s.ClientID, s.LawyerID, string(s.Type), s.SlotStart, s.SlotEnd, s.PriceAmount, s.Currency, string(s.Status),
		s.Rating, s.Review, s.RatedAt, s.CancelledBy, s.CancellationReason,
		s.CreatedAt, s.ConfirmedAt, s.StartedAt, s.CompletedAt, s.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func updateConsultation(ctx context.Context, tx pgx.Tx, s model.ConsultationSnapshot) error {
	query := `
		UPDATE consultations
		SET status = $3, rating = $4, review = $5, rated_at = $6,
			cancelled_by = $7, cancellation_reason = $8,
			confirmed_at = $9, started_at = $10, completed_at = $11, cancelled_at = $12,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`

	tag, err := tx.Exec(ctx, query,
		s.ID, s.Version, string(s.Status), s.Rating, s.Review, s.RatedAt,
		s.CancelledBy, s.CancellationReason,
		s.ConfirmedAt, s.StartedAt, s.CompletedAt, s.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update consultation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Версия не совпала или строки нет
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM consultations WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check consultation exists: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return fmt.Errorf("%w: expected version %d", model.ErrConcurrencyConflict, s.Version)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, records []model.OutboxRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO consultation_events (id, consultation_id, name, payload, version, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, rec.ConsultationID, string(rec.Name), rec.Payload, rec.Version, rec.OccurredAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert outbox events: %w", err)
	}
	return nil
}

func scanConsultation(row pgx.Row) (*model.Consultation, error) {
	var (
		s           model.ConsultationSnapshot
		consultType string
		status      string
		rating      *int16
	)

	err := row.Scan(
		&s.ID,
		&s.ClientID,
		&s.LawyerID,
		&consultType,
		&s.SlotStart,
		&s.SlotEnd,
		&s.PriceAmount,
		&s.Currency,
		&status,
		&rating,
		&s.Review,
		&s.RatedAt,
		&s.CancelledBy,
		&s.CancellationReason,
		&s.CreatedAt,
		&s.ConfirmedAt,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CancelledAt,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.Type = model.ConsultationType(consultType)
	s.Status = model.ConsultationStatus(status)
	if rating != nil {
		v := int(*rating)
		s.Rating = &v
	}

	return model.RestoreConsultation(s)
}

func collectConsultations(rows pgx.Rows) ([]*model.Consultation, error) {
	var consultations []*model.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consultation: %w", err)
		}
		consultations = append(consultations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations: %w", err)
	}

	return consultations, nil
}
