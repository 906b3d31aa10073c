package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"go.uber.org/zap"
)

const (
	// ExpiryReason причина отмены заявки, которую юрист не подтвердил вовремя
	ExpiryReason = "not confirmed in time"

	expiryBatchSize = 100
)

// ExpiryService отменяет pending заявки старше ttl командой отмены от имени юриста, не трогая уже подтверждённые
type ExpiryService struct {
	finder        StalePendingFinder
	consultations *ConsultationService
	ttl           time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewExpiryService(finder StalePendingFinder, consultations *ConsultationService, ttl time.Duration, logger *zap.Logger) *ExpiryService {
	return &ExpiryService{
		finder:        finder,
		consultations: consultations,
		ttl:           ttl,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock подменяет часы
func (s *ExpiryService) WithClock(now func() time.Time) *ExpiryService {
	s.now = now
	return s
}

// ExpireStale возвращает число отменённых заявок
func (s *ExpiryService) ExpireStale(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	stale, err := s.finder.FindPendingCreatedBefore(ctx, s.now().Add(-s.ttl), expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find stale pending: %w", err)
	}

	expired := 0
	for _, c := range stale {
		_, err := s.consultations.CancelPending(ctx, c.ID(), c.LawyerID(), ExpiryReason)
		if err != nil {
			// Заявка уже не pending: её подтвердили или отменили после поиска
			if errors.Is(err, model.ErrInvalidTransition) {
				continue
			}
			s.logger.Error("Failed to expire consultation",
				zap.String("consultation_id", c.ID().String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("Expired stale pending consultations", zap.Int("count", expired))
	}

	return expired, nil
}
