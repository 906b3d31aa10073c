package callbacks

import (
	"context"

	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Route распределяет callback query по обработчикам
func Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *Handler) {
	h.Logger.Info("Routing callback",
		zap.String("data", callback.Data),
		zap.Int64("user_id", callback.From.ID))

	action, err := ParseCallback(callback.Data)
	if err != nil {
		h.Logger.Warn("Unknown callback", zap.String("data", callback.Data), zap.Error(err))
		AnswerCallbackAlert(ctx, b, callback.ID, "❌ Неизвестная команда")
		return
	}

	hc := NewHandlerContext(ctx, b, callback, h)
	if err := hc.LoadUser(); err != nil {
		hc.Fail(err, "load_user")
		return
	}

	switch action.Prefix {
	case keyboard.BookEmergency:
		handleBookEmergency(hc, action)
	case keyboard.BookScheduled:
		handleBookScheduled(hc, action)
	case keyboard.Confirm:
		handleConfirm(hc, action)
	case keyboard.Start:
		handleStart(hc, action)
	case keyboard.Complete:
		handleComplete(hc, action)
	case keyboard.CancelConsultation:
		handleCancel(hc, action)
	case keyboard.Rate:
		handleRate(hc, action)
	}
}

// HandleCallbackQuery точка входа для bot.RegisterHandler
func (h *Handler) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	Route(ctx, b, update.CallbackQuery, h)
}
