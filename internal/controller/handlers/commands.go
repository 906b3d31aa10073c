package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Справка по командам:\n\n" +
	"Для клиентов:\n" +
	"/lawyers - Список юристов и запись\n" +
	"/myconsultations - Мои консультации\n" +
	"/cancel - Прервать текущий диалог\n\n" +
	"Для юристов:\n" +
	"/becomelawyer &lt;цена&gt; - Стать юристом, цена в рублях\n" +
	"/pending - Заявки, ожидающие подтверждения\n\n" +
	"Подтвердить заявку можно после оплаты клиентом."

// HandleStart регистрирует пользователя
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	user, err := h.userService.RegisterUser(ctx, from.ID, from.Username, from.FirstName, from.LastName)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"👋 Привет, %s!\n\nЭто бот записи на юридические консультации.\n\n%s",
		html.EscapeString(user.DisplayName()),
		helpText,
	))
}

func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleCancel прерывает текущий диалог
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) == state.StateNone {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}

	h.stateManager.ClearState(telegramID)
	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleLawyers каталог юристов с кнопками записи
func (h *Handlers) HandleLawyers(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	lawyers, err := h.userService.ListLawyers(ctx, listLimit, 0)
	if err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}

	shown := 0
	for _, lawyer := range lawyers {
		if lawyer.ID == user.ID {
			continue
		}
		price, err := lawyer.Price()
		if err != nil {
			h.logger.Warn("Lawyer has invalid price", zap.String("lawyer_id", lawyer.ID.String()), zap.Error(err))
			continue
		}

		text := fmt.Sprintf("👩‍⚖️ <b>%s</b>\n💰 %s за консультацию",
			html.EscapeString(lawyer.DisplayName()), formatting.FormatPrice(price))
		h.sendWithKeyboard(ctx, b, chatID, text, keyboard.NewBuilder().Row(keyboard.LawyerActions(lawyer.ID)...).Build())
		shown++
	}

	if shown == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Пока нет доступных юристов.")
	}
}

// HandleMyConsultations консультации пользователя как клиента и как юриста
func (h *Handlers) HandleMyConsultations(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	page, err := h.consultationService.ListByClient(ctx, user.ID, user.ID, nil, listLimit, 0)
	if err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}
	items := page.Items
	total := page.Total

	if user.IsLawyer {
		lawyerPage, err := h.consultationService.ListByLawyer(ctx, user.ID, user.ID, nil, listLimit, 0)
		if err != nil {
			h.replyError(ctx, b, chatID, err)
			return
		}
		items = append(items, lawyerPage.Items...)
		total += lawyerPage.Total
	}

	if len(items) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 У вас пока нет консультаций.\n\nЗаписаться: /lawyers")
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("📋 У вас %d %s, последние:", total, formatting.PluralizeConsultations(total)))
	for _, c := range items {
		h.sendConsultation(ctx, b, chatID, c, user)
	}
}

// HandlePending очередь заявок юриста
func (h *Handlers) HandlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireLawyer(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	pending, err := h.consultationService.ListPendingByLawyer(ctx, user.ID, user.ID, listLimit)
	if err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}

	if len(pending) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Новых заявок нет.")
		return
	}

	for _, c := range pending {
		h.sendConsultation(ctx, b, chatID, c, user)
	}
}

// HandleBecomeLawyer "/becomelawyer 5000" делает пользователя юристом с ценой в рублях
func (h *Handlers) HandleBecomeLawyer(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	price, err := parseRubles(strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/becomelawyer")))
	if err != nil {
		h.sendMessage(ctx, b, chatID, "❌ Укажите цену консультации в рублях, например: /becomelawyer 5000")
		return
	}

	if _, err := h.userService.MakeLawyer(ctx, user.ID, price); err != nil {
		h.replyError(ctx, b, chatID, err)
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("✅ Вы зарегистрированы как юрист. Цена консультации: %s\n\nЗаявки: /pending",
		formatting.FormatPrice(price)))
}

func parseRubles(raw string) (model.Price, error) {
	rubles, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rubles <= 0 || rubles > 10_000_000 {
		return model.Price{}, fmt.Errorf("invalid price %q", raw)
	}
	return model.NewPrice(rubles*100, model.DefaultCurrency)
}
