package events

import (
	"context"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"go.uber.org/zap"
)

// NewAuditLogHandler пишет каждое событие в журнал
func NewAuditLogHandler(logger *zap.Logger) Handler {
	return HandlerFunc(func(_ context.Context, e model.Event) error {
		meta := e.Meta()
		logger.Info("Consultation event",
			zap.String("event", string(e.Name())),
			zap.String("event_id", meta.ID.String()),
			zap.String("consultation_id", meta.ConsultationID.String()),
			zap.Int64("version", meta.Version),
			zap.Time("occurred_at", meta.OccurredAt),
		)
		return nil
	})
}
