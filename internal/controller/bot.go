package controller

import (
	"context"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/controller/callbacks"
	"github.com/Freeeeeet/legal_consult/internal/controller/handlers"
	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const dialogSweepInterval = 5 * time.Minute

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	stateManager    *state.Manager
	logger          *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	userService *service.UserService,
	consultationService *service.ConsultationService,
	paymentService *service.PaymentService,
	location *time.Location,
	logger *zap.Logger,
) *BotController {
	stateManager := state.NewManager(state.DefaultDialogTTL)

	cmdHandlers := handlers.NewHandlers(
		userService,
		consultationService,
		stateManager,
		location,
		logger,
	)

	callbackHandler := &callbacks.Handler{
		UserService:         userService,
		ConsultationService: consultationService,
		PaymentService:      paymentService,
		StateManager:        stateManager,
		Location:            location,
		Logger:              logger,
	}

	return &BotController{
		bot:             botInstance,
		handlers:        cmdHandlers,
		callbackHandler: callbackHandler,
		stateManager:    stateManager,
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/lawyers", bot.MatchTypeExact, c.handlers.HandleLawyers)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/myconsultations", bot.MatchTypeExact, c.handlers.HandleMyConsultations)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, c.handlers.HandleCancel)

	// Команды юриста
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/pending", bot.MatchTypeExact, c.handlers.HandlePending)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/becomelawyer", bot.MatchTypePrefix, c.handlers.HandleBecomeLawyer)

	// Текст для диалогов с состояниями
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleTextMessage)

	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "lawyers", Description: "👩‍⚖️ Юристы и запись"},
		{Command: "myconsultations", Description: "📋 Мои консультации"},
		{Command: "pending", Description: "📥 Новые заявки (юрист)"},
		{Command: "becomelawyer", Description: "⚖️ Стать юристом"},
		{Command: "cancel", Description: "✖️ Прервать диалог"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	go c.sweepDialogs(ctx)
	c.bot.Start(ctx)
	return nil
}

func (c *BotController) sweepDialogs(ctx context.Context) {
	ticker := time.NewTicker(dialogSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.stateManager.Sweep(); n > 0 {
				c.logger.Debug("Expired dialogs removed", zap.Int("count", n))
			}
		}
	}
}
