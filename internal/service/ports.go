package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
)

// ConsultationRepository хранилище консультаций. Реализации: repository.ConsultationRepository и memory.Store
type ConsultationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	FindActiveByLawyer(ctx context.Context, lawyerID uuid.UUID) (*model.Consultation, error)
	FindByClient(ctx context.Context, clientID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error)
	FindByLawyer(ctx context.Context, lawyerID uuid.UUID, status *model.ConsultationStatus, limit, offset int) ([]*model.Consultation, int, error)
	FindPendingByLawyer(ctx context.Context, lawyerID uuid.UUID, limit int) ([]*model.Consultation, error)
	Save(ctx context.Context, c *model.Consultation) (*model.Consultation, error)
}

// StalePendingFinder выборка зависших pending консультаций для задачи истечения
type StalePendingFinder interface {
	FindPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Consultation, error)
}

// LawyerDirectory источник профилей юристов (цена консультации)
type LawyerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// UserStore хранилище пользователей
type UserStore interface {
	LawyerDirectory
	Create(ctx context.Context, user *model.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	GetLawyers(ctx context.Context, limit, offset int) ([]*model.User, error)
}

// PaymentStore хранилище результатов оплаты
type PaymentStore interface {
	Upsert(ctx context.Context, p *model.Payment) (*model.Payment, error)
	GetByConsultationID(ctx context.Context, consultationID uuid.UUID) (*model.Payment, error)
}

// EventLog журнал событий консультации из outbox
type EventLog interface {
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]model.OutboxRecord, error)
}
