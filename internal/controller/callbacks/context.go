package callbacks

import (
	"context"
	"errors"
	"strings"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

// HandlerContext общие данные обработки одного callback
type HandlerContext struct {
	Ctx        context.Context
	Bot        *bot.Bot
	Callback   *models.CallbackQuery
	Handler    *Handler
	Message    *models.Message
	User       *model.User
	TelegramID int64
	ChatID     int64
}

func NewHandlerContext(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *Handler) *HandlerContext {
	msg := GetMessageFromCallback(callback)
	var chatID int64
	if msg != nil {
		chatID = msg.Chat.ID
	}

	return &HandlerContext{
		Ctx:        ctx,
		Bot:        b,
		Callback:   callback,
		Handler:    h,
		Message:    msg,
		TelegramID: callback.From.ID,
		ChatID:     chatID,
	}
}

// LoadUser загружает пользователя в контекст
func (hc *HandlerContext) LoadUser() error {
	user, err := hc.Handler.UserService.GetByTelegramID(hc.Ctx, hc.TelegramID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	hc.User = user
	return nil
}

func (hc *HandlerContext) Answer(text string) {
	AnswerCallback(hc.Ctx, hc.Bot, hc.Callback.ID, text)
}

func (hc *HandlerContext) AnswerAlert(text string) {
	AnswerCallbackAlert(hc.Ctx, hc.Bot, hc.Callback.ID, text)
}

// Fail отвечает alert'ом, неожиданные ошибки пишет в лог
func (hc *HandlerContext) Fail(err error, operation string) {
	if !model.IsDomainError(err) && !errors.Is(err, ErrUserNotFound) {
		hc.Handler.Logger.Error("Callback failed",
			zap.String("operation", operation),
			zap.Int64("telegram_id", hc.TelegramID),
			zap.Error(err))
	}
	if errors.Is(err, ErrUserNotFound) {
		hc.AnswerAlert("❌ Пользователь не найден. Используйте /start")
		return
	}
	hc.AnswerAlert(formatting.ErrorMessage(err))
}

// ShowConsultation перерисовывает карточку в исходном сообщении
func (hc *HandlerContext) ShowConsultation(c *model.Consultation) {
	text := formatting.FormatConsultation(c, hc.Handler.Location)
	kb := keyboard.ConsultationActions(c, hc.User.ID)

	if hc.Message != nil {
		_, err := hc.Bot.EditMessageText(hc.Ctx, &bot.EditMessageTextParams{
			ChatID:      hc.ChatID,
			MessageID:   hc.Message.ID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: kb,
		})
		if err == nil || IsMessageNotModifiedError(err) {
			return
		}
		hc.Handler.Logger.Warn("Failed to edit message, sending new one", zap.Error(err))
	}

	hc.Send(text, kb)
}

func (hc *HandlerContext) Send(text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    hc.ChatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := hc.Bot.SendMessage(hc.Ctx, params); err != nil {
		hc.Handler.Logger.Error("Failed to send message", zap.Int64("chat_id", hc.ChatID), zap.Error(err))
	}
}

func AnswerCallback(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

// AnswerCallbackAlert ответ всплывающим окном
func AnswerCallbackAlert(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

func GetMessageFromCallback(callback *models.CallbackQuery) *models.Message {
	if callback.Message.Message != nil {
		return callback.Message.Message
	}
	return nil
}

// IsMessageNotModifiedError Telegram отвечает так на редактирование тем же текстом
func IsMessageNotModifiedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
