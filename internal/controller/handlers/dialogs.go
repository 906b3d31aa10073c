package handlers

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HandleTextMessage обрабатывает текст в зависимости от шага диалога
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Команды обрабатываются другими handlers
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	switch current := h.stateManager.GetState(telegramID); current {
	case state.StateNone:
		return
	case state.StateEnteringSlot:
		h.handleSlotStep(ctx, b, update)
	case state.StateEnteringCancelReason:
		h.handleCancelReasonStep(ctx, b, update)
	default:
		h.logger.Warn("Unknown state", zap.String("state", string(current)))
		h.stateManager.ClearState(telegramID)
	}
}

// handleSlotStep клиент прислал время плановой консультации
func (h *Handlers) handleSlotStep(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	lawyerID, ok := h.dialogID(telegramID, state.KeyLawyerID)
	if !ok {
		h.stateManager.ClearState(telegramID)
		h.sendMessage(ctx, b, chatID, "❌ Данные записи не найдены. Начните заново через /lawyers")
		return
	}

	slot, err := formatting.ParseSlot(update.Message.Text, h.location, time.Now())
	if err != nil {
		// Диалог не сбрасываем, пусть попробует ещё раз
		h.sendMessage(ctx, b, chatID, "❌ "+html.EscapeString(err.Error())+"\n\nПример: 15.01.2030 10:00 60\nОтмена: /cancel")
		return
	}

	c, err := h.consultationService.Book(ctx, service.BookCommand{
		ClientID: user.ID,
		LawyerID: lawyerID,
		Type:     model.ConsultationTypeScheduled,
		Slot:     &slot,
	})
	h.stateManager.ClearState(telegramID)
	if err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}

	h.sendMessage(ctx, b, chatID, "✅ Заявка отправлена юристу. После оплаты он сможет её подтвердить.")
	h.sendConsultation(ctx, b, chatID, c, user)
}

// handleCancelReasonStep сторона прислала причину отмены
func (h *Handlers) handleCancelReasonStep(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	consultationID, ok := h.dialogID(telegramID, state.KeyConsultationID)
	if !ok {
		h.stateManager.ClearState(telegramID)
		h.sendMessage(ctx, b, chatID, "❌ Консультация не выбрана. Откройте /myconsultations")
		return
	}

	c, err := h.consultationService.Cancel(ctx, consultationID, user.ID, update.Message.Text)
	if errors.Is(err, model.ErrReasonRequired) {
		h.sendMessage(ctx, b, chatID, "❌ Напишите причину отмены текстом.\n\nПрервать: /cancel")
		return
	}
	h.stateManager.ClearState(telegramID)
	if err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}

	h.sendMessage(ctx, b, chatID, "✅ Консультация отменена.")
	h.sendConsultation(ctx, b, chatID, c, user)
}

func (h *Handlers) dialogID(telegramID int64, key string) (uuid.UUID, bool) {
	raw, ok := h.stateManager.GetData(telegramID, key)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
