package handlers

import (
	"context"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser проверяет что пользователь зарегистрирован
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.userService.GetByTelegramID(ctx, telegramID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if user == nil {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Пользователь не найден. Используйте /start для регистрации.")
		return nil, false
	}

	return user, true
}

// requireLawyer проверяет что пользователь юрист
func (h *Handlers) requireLawyer(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, false
	}

	if !user.IsLawyer {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Эта команда доступна только юристам.\n\nСтать юристом: /becomelawyer &lt;цена в рублях&gt;")
		return nil, false
	}

	return user, true
}

// replyError сообщает пользователю доменную ошибку, остальные пишет в лог
func (h *Handlers) replyError(ctx context.Context, b *bot.Bot, chatID int64, err error) {
	if !model.IsDomainError(err) {
		h.logger.Error("Command failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	h.sendMessage(ctx, b, chatID, formatting.ErrorMessage(err))
}

func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	h.sendWithKeyboard(ctx, b, chatID, text, nil)
}

func (h *Handlers) sendWithKeyboard(ctx context.Context, b *bot.Bot, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// sendConsultation карточка с кнопками для viewer
func (h *Handlers) sendConsultation(ctx context.Context, b *bot.Bot, chatID int64, c *model.Consultation, viewer *model.User) {
	h.sendWithKeyboard(ctx, b, chatID, formatting.FormatConsultation(c, h.location), keyboard.ConsultationActions(c, viewer.ID))
}
