package handlers

import (
	"time"

	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"go.uber.org/zap"
)

// listLimit сколько консультаций показывать в одном списке
const listLimit = 10

// Handlers обработчики команд и текстовых сообщений
type Handlers struct {
	userService         *service.UserService
	consultationService *service.ConsultationService
	stateManager        *state.Manager
	location            *time.Location
	logger              *zap.Logger
}

func NewHandlers(
	userService *service.UserService,
	consultationService *service.ConsultationService,
	stateManager *state.Manager,
	location *time.Location,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:         userService,
		consultationService: consultationService,
		stateManager:        stateManager,
		location:            location,
		logger:              logger,
	}
}
