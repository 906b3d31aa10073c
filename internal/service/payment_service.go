package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentFailedReason причина отмены при неуспешной оплате
const PaymentFailedReason = "payment failed"

// PaymentSignal уведомление платёжного шлюза
type PaymentSignal struct {
	ConsultationID uuid.UUID
	Succeeded      bool
	ProviderRef    string
}

type PaymentService struct {
	payments      PaymentStore
	consultations *ConsultationService
	repo          ConsultationRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewPaymentService(payments PaymentStore, repo ConsultationRepository, consultations *ConsultationService, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		payments:      payments,
		consultations: consultations,
		repo:          repo,
		logger:        logger,
		now:           time.Now,
	}
}

// HandleSignal сохраняет результат оплаты. Повторный сигнал безопасен.
// Неуспешная оплата отменяет консультацию от имени клиента.
func (s *PaymentService) HandleSignal(ctx context.Context, sig PaymentSignal) (*model.Payment, error) {
	c, err := s.repo.FindByID(ctx, sig.ConsultationID)
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, sig.ConsultationID)
	}

	status := model.PaymentStatusFailed
	if sig.Succeeded {
		status = model.PaymentStatusSucceeded
	}

	stored, err := s.payments.Upsert(ctx, &model.Payment{
		ConsultationID: sig.ConsultationID,
		Status:         status,
		ProviderRef:    sig.ProviderRef,
		ReceivedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}

	s.logger.Info("Payment signal received",
		zap.String("consultation_id", sig.ConsultationID.String()),
		zap.String("status", string(stored.Status)),
		zap.String("provider_ref", sig.ProviderRef),
	)

	if stored.Succeeded() {
		return stored, nil
	}

	_, err = s.consultations.Cancel(ctx, c.ID(), c.ClientID(), PaymentFailedReason)
	if err != nil && !errors.Is(err, model.ErrInvalidTransition) {
		return nil, fmt.Errorf("cancel unpaid consultation: %w", err)
	}

	return stored, nil
}

// ConfirmPaid подтверждение юристом. Pending заявку без успешной оплаты подтвердить нельзя.
func (s *PaymentService) ConfirmPaid(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error) {
	c, err := s.consultations.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	if c.LawyerID() == caller && c.Status() == model.ConsultationStatusPending {
		paid, err := s.IsPaid(ctx, id)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, fmt.Errorf("%w: %s", model.ErrPaymentRequired, id)
		}
	}

	return s.consultations.Confirm(ctx, id, caller)
}

// IsPaid есть ли успешная оплата консультации
func (s *PaymentService) IsPaid(ctx context.Context, consultationID uuid.UUID) (bool, error) {
	p, err := s.payments.GetByConsultationID(ctx, consultationID)
	if err != nil {
		return false, fmt.Errorf("get payment: %w", err)
	}
	return p.Succeeded(), nil
}
