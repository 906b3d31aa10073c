package formatting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
)

// ShortID первые символы UUID для подписи в чате
func ShortID(c *model.Consultation) string {
	return c.ID().String()[:8]
}

// FormatConsultation карточка консультации
func FormatConsultation(c *model.Consultation, loc *time.Location) string {
	display := GetStatusDisplay(c.Status())

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>Консультация #%s</b>\n\n", display.Emoji, ShortID(c))
	fmt.Fprintf(&sb, "📊 Статус: %s\n", display.Text)
	fmt.Fprintf(&sb, "🗂 Тип: %s\n", TypeText(c.Type()))
	if slot := c.TimeSlot(); slot != nil {
		fmt.Fprintf(&sb, "🕐 Время: %s (%s)\n", FormatSlot(slot, loc), FormatDuration(slot.Duration()))
	}
	fmt.Fprintf(&sb, "💰 Стоимость: %s\n", FormatPrice(c.Price()))
	fmt.Fprintf(&sb, "📅 Создана: %s", FormatDateTime(c.CreatedAt(), loc))

	if c.Status() == model.ConsultationStatusCancelled && c.CancellationReason() != "" {
		fmt.Fprintf(&sb, "\n📝 Причина отмены: %s", html.EscapeString(c.CancellationReason()))
	}
	if r := c.Rating(); r != nil {
		fmt.Fprintf(&sb, "\n⭐ Оценка: %s", strings.Repeat("⭐", r.Score))
		if r.Review != "" {
			fmt.Fprintf(&sb, "\n💬 Отзыв: %s", html.EscapeString(r.Review))
		}
	}

	return sb.String()
}

// FormatConsultationLine строка для списка
func FormatConsultationLine(c *model.Consultation, loc *time.Location) string {
	display := GetStatusDisplay(c.Status())
	when := FormatDateTime(c.CreatedAt(), loc)
	if slot := c.TimeSlot(); slot != nil {
		when = FormatSlot(slot, loc)
	}
	return fmt.Sprintf("%s #%s · %s · %s", display.Emoji, ShortID(c), when, FormatPrice(c.Price()))
}
