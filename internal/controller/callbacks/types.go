package callbacks

import (
	"time"

	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"go.uber.org/zap"
)

// Handler зависимости обработчиков inline-кнопок
type Handler struct {
	UserService         *service.UserService
	ConsultationService *service.ConsultationService
	PaymentService      *service.PaymentService
	StateManager        *state.Manager
	Location            *time.Location
	Logger              *zap.Logger
}
