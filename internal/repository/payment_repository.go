package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	*base.Repository
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{Repository: base.NewRepository(pool)}
}

// Upsert сохраняет результат оплаты. Успешная оплата не перезаписывается неудачной
func (r *PaymentRepository) Upsert(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	query := `
		INSERT INTO payments (consultation_id, status, provider_ref, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consultation_id) DO UPDATE
		SET status = EXCLUDED.status, provider_ref = EXCLUDED.provider_ref, received_at = EXCLUDED.received_at
		WHERE payments.status <> 'succeeded'
		RETURNING consultation_id, status, provider_ref, received_at
	`

	var (
		stored model.Payment
		status string
	)
	err := r.QueryRow(ctx, query, p.ConsultationID, string(p.Status), p.ProviderRef, p.ReceivedAt).
		Scan(&stored.ConsultationID, &status, &stored.ProviderRef, &stored.ReceivedAt)
	if err != nil {
		if base.IsNotFound(err) {
			// Уже оплачено, возвращаем сохранённое
			return r.GetByConsultationID(ctx, p.ConsultationID)
		}
		return nil, fmt.Errorf("upsert payment: %w", err)
	}
	stored.Status = model.PaymentStatus(status)

	return &stored, nil
}

// GetByConsultationID получает оплату консультации, nil если сигнала ещё не было
func (r *PaymentRepository) GetByConsultationID(ctx context.Context, consultationID uuid.UUID) (*model.Payment, error) {
	query := `
		SELECT consultation_id, status, provider_ref, received_at
		FROM payments
		WHERE consultation_id = $1
	`

	var (
		p      model.Payment
		status string
	)
	err := r.QueryRow(ctx, query, consultationID).Scan(&p.ConsultationID, &status, &p.ProviderRef, &p.ReceivedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Status = model.PaymentStatus(status)

	return &p, nil
}
