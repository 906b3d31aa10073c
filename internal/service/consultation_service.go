package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxCommandAttempts сколько раз команда перезапускается при ErrConcurrencyConflict
	MaxCommandAttempts = 3

	MaxPageSize = 100
)

// BookCommand запрос клиента на консультацию. Цена берётся из профиля юриста
type BookCommand struct {
	ClientID uuid.UUID
	LawyerID uuid.UUID
	Type     model.ConsultationType
	Slot     *model.TimeSlot
}

// Page страница списка консультаций
type Page struct {
	Items  []*model.Consultation
	Total  int
	Limit  int
	Offset int
}

type ConsultationService struct {
	repo    ConsultationRepository
	lawyers LawyerDirectory
	logger  *zap.Logger
	now     func() time.Time
}

func NewConsultationService(repo ConsultationRepository, lawyers LawyerDirectory, logger *zap.Logger) *ConsultationService {
	return &ConsultationService{
		repo:    repo,
		lawyers: lawyers,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock подменяет часы (для тестов и задачи истечения)
func (s *ConsultationService) WithClock(now func() time.Time) *ConsultationService {
	s.now = now
	return s
}

// Book создаёт консультацию в статусе pending
func (s *ConsultationService) Book(ctx context.Context, cmd BookCommand) (*model.Consultation, error) {
	lawyer, err := s.lawyers.GetByID(ctx, cmd.LawyerID)
	if err != nil {
		return nil, fmt.Errorf("get lawyer: %w", err)
	}
	if lawyer == nil || !lawyer.IsLawyer {
		return nil, fmt.Errorf("%w: lawyer %s not found", model.ErrInvalidConsultation, cmd.LawyerID)
	}

	price, err := lawyer.Price()
	if err != nil {
		return nil, fmt.Errorf("%w: lawyer price: %w", model.ErrInvalidConsultation, err)
	}

	c, err := model.Book(model.BookParams{
		ClientID: cmd.ClientID,
		LawyerID: cmd.LawyerID,
		Type:     cmd.Type,
		Slot:     cmd.Slot,
		Price:    price,
	}, s.now())
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("save consultation: %w", err)
	}

	s.logger.Info("Consultation booked",
		zap.String("consultation_id", saved.ID().String()),
		zap.String("client_id", cmd.ClientID.String()),
		zap.String("lawyer_id", cmd.LawyerID.String()),
		zap.String("type", string(cmd.Type)),
		zap.String("price", price.String()),
	)

	return saved, nil
}

// Confirm подтверждение юристом. Юрист не может держать две активные консультации
func (s *ConsultationService) Confirm(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error) {
	return s.execute(ctx, "confirm", id, func(c *model.Consultation) error {
		if err := c.Confirm(caller, s.now()); err != nil {
			return err
		}
		return s.ensureLawyerFree(ctx, c)
	})
}

// Start начало консультации
func (s *ConsultationService) Start(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error) {
	return s.execute(ctx, "start", id, func(c *model.Consultation) error {
		if err := c.Start(caller, s.now()); err != nil {
			return err
		}
		return s.ensureLawyerFree(ctx, c)
	})
}

// Complete завершение консультации
func (s *ConsultationService) Complete(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error) {
	return s.execute(ctx, "complete", id, func(c *model.Consultation) error {
		return c.Complete(caller, s.now())
	})
}

// Cancel отмена любой из сторон
func (s *ConsultationService) Cancel(ctx context.Context, id, caller uuid.UUID, reason string) (*model.Consultation, error) {
	return s.execute(ctx, "cancel", id, func(c *model.Consultation) error {
		return c.Cancel(caller, reason, s.now())
	})
}

// CancelPending отменяет только ещё не подтверждённую заявку. Статус проверяется
// на каждой попытке, поэтому подтверждение между поиском и отменой не затирается.
func (s *ConsultationService) CancelPending(ctx context.Context, id, caller uuid.UUID, reason string) (*model.Consultation, error) {
	return s.execute(ctx, "cancel_pending", id, func(c *model.Consultation) error {
		if !c.IsParty(caller) {
			return fmt.Errorf("%w: only a party can cancel", model.ErrUnauthorized)
		}
		if c.Status() != model.ConsultationStatusPending {
			return fmt.Errorf("%w: consultation is %s, not pending", model.ErrInvalidTransition, c.Status())
		}
		return c.Cancel(caller, reason, s.now())
	})
}

// Rate оценка клиентом завершённой консультации
func (s *ConsultationService) Rate(ctx context.Context, id, caller uuid.UUID, score int, review string) (*model.Consultation, error) {
	return s.execute(ctx, "rate", id, func(c *model.Consultation) error {
		return c.Rate(caller, score, review, s.now())
	})
}

// Get консультация для одной из сторон
func (s *ConsultationService) Get(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsParty(caller) {
		return nil, fmt.Errorf("%w: not a party of consultation", model.ErrUnauthorized)
	}
	return c, nil
}

// ListByClient консультации клиента. Смотреть может только сам клиент
func (s *ConsultationService) ListByClient(ctx context.Context, caller, clientID uuid.UUID, status *model.ConsultationStatus, limit, offset int) (*Page, error) {
	if caller != clientID {
		return nil, fmt.Errorf("%w: foreign consultation list", model.ErrUnauthorized)
	}
	if err := validatePage(status, limit, offset); err != nil {
		return nil, err
	}

	items, total, err := s.repo.FindByClient(ctx, clientID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("find by client: %w", err)
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// ListByLawyer консультации юриста. Смотреть может только сам юрист
func (s *ConsultationService) ListByLawyer(ctx context.Context, caller, lawyerID uuid.UUID, status *model.ConsultationStatus, limit, offset int) (*Page, error) {
	if caller != lawyerID {
		return nil, fmt.Errorf("%w: foreign consultation list", model.ErrUnauthorized)
	}
	if err := validatePage(status, limit, offset); err != nil {
		return nil, err
	}

	items, total, err := s.repo.FindByLawyer(ctx, lawyerID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("find by lawyer: %w", err)
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// ListPendingByLawyer очередь заявок юриста, старые первыми
func (s *ConsultationService) ListPendingByLawyer(ctx context.Context, caller, lawyerID uuid.UUID, limit int) ([]*model.Consultation, error) {
	if caller != lawyerID {
		return nil, fmt.Errorf("%w: foreign consultation list", model.ErrUnauthorized)
	}
	if err := validatePage(nil, limit, 0); err != nil {
		return nil, err
	}

	items, err := s.repo.FindPendingByLawyer(ctx, lawyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("find pending by lawyer: %w", err)
	}
	return items, nil
}

// execute загружает агрегат, применяет команду и сохраняет.
// Конфликт версий перезапускает команду целиком на свежем состоянии.
func (s *ConsultationService) execute(ctx context.Context, op string, id uuid.UUID, apply func(*model.Consultation) error) (*model.Consultation, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxCommandAttempts; attempt++ {
		c, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := apply(c); err != nil {
			return nil, err
		}

		saved, err := s.repo.Save(ctx, c)
		if err == nil {
			s.logger.Info("Consultation updated",
				zap.String("op", op),
				zap.String("consultation_id", id.String()),
				zap.String("status", string(saved.Status())),
				zap.Int64("version", saved.Version()),
			)
			return saved, nil
		}
		if !model.IsRetryable(err) {
			return nil, fmt.Errorf("%s consultation: %w", op, err)
		}

		lastErr = err
		s.logger.Debug("Concurrent modification, retrying",
			zap.String("op", op),
			zap.String("consultation_id", id.String()),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%s consultation: %w", op, lastErr)
}

func (s *ConsultationService) load(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return c, nil
}

// ensureLawyerFree быстрая проверка занятости. Окончательно решает уникальный индекс при сохранении
func (s *ConsultationService) ensureLawyerFree(ctx context.Context, c *model.Consultation) error {
	active, err := s.repo.FindActiveByLawyer(ctx, c.LawyerID())
	if err != nil {
		return fmt.Errorf("get active consultation: %w", err)
	}
	if c.ConflictsWith(active) {
		return fmt.Errorf("%w: busy with %s", model.ErrLawyerBusy, active.ID())
	}
	return nil
}

func validatePage(status *model.ConsultationStatus, limit, offset int) error {
	if limit < 1 || limit > MaxPageSize {
		return fmt.Errorf("%w: limit must be in [1, %d], got %d", model.ErrInvalidQuery, MaxPageSize, limit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", model.ErrInvalidQuery, offset)
	}
	if status != nil && !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidQuery, *status)
	}
	return nil
}
