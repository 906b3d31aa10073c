package controller

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/keyboard"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender отправка сообщений в Telegram, реализуется *bot.Bot
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type ConsultationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Notifier подписчик на события: сообщает обеим сторонам об изменении консультации
type Notifier struct {
	sender        Sender
	consultations ConsultationReader
	users         UserReader
	location      *time.Location
	logger        *zap.Logger
}

func NewNotifier(sender Sender, consultations ConsultationReader, users UserReader, location *time.Location, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:        sender,
		consultations: consultations,
		users:         users,
		location:      location,
		logger:        logger,
	}
}

// Handle реализует events.Handler. Ошибка отправки вернёт событие на повтор
func (n *Notifier) Handle(ctx context.Context, e model.Event) error {
	meta := e.Meta()
	c, err := n.consultations.FindByID(ctx, meta.ConsultationID)
	if err != nil {
		return fmt.Errorf("load consultation: %w", err)
	}
	if c == nil {
		n.logger.Warn("Consultation for event not found",
			zap.String("event_id", meta.ID.String()),
			zap.String("consultation_id", meta.ConsultationID.String()))
		return nil
	}

	for _, recipient := range []uuid.UUID{c.ClientID(), c.LawyerID()} {
		headline := headlineFor(e, recipient)
		if headline == "" {
			continue
		}
		if err := n.notify(ctx, recipient, headline, c); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) notify(ctx context.Context, userID uuid.UUID, headline string, c *model.Consultation) error {
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user %s: %w", userID, err)
	}
	// Пользователь без Telegram (только HTTP API)
	if user == nil || user.TelegramID == 0 {
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID:    user.TelegramID,
		Text:      headline + "\n\n" + formatting.FormatConsultation(c, n.location),
		ParseMode: models.ParseModeHTML,
	}
	if kb := keyboard.ConsultationActions(c, userID); kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := n.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send to %d: %w", user.TelegramID, err)
	}
	return nil
}

// headlineFor пустая строка: получателю не о чем сообщать
func headlineFor(e model.Event, recipient uuid.UUID) string {
	switch ev := e.(type) {
	case model.ConsultationBooked:
		if recipient == ev.LawyerID {
			return "📥 Новая заявка на консультацию"
		}
		return ""
	case model.ConsultationConfirmed:
		if recipient == ev.LawyerID {
			return ""
		}
		return "✅ Юрист подтвердил консультацию"
	case model.ConsultationStarted:
		return "▶️ Консультация началась"
	case model.ConsultationCompleted:
		return "🏁 Консультация завершена"
	case model.ConsultationCancelled:
		if recipient == ev.CancelledBy {
			return ""
		}
		return fmt.Sprintf("❌ Консультация отменена другой стороной\n📝 %s", html.EscapeString(ev.Reason))
	case model.ConsultationRated:
		return fmt.Sprintf("⭐ Клиент оценил консультацию: %d из %d", ev.Rating, model.MaxRating)
	default:
		return ""
	}
}
