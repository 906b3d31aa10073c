package keyboard

import (
	"fmt"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// Префиксы callback data
const (
	BookEmergency      = "book_emergency:"      // book_emergency:<lawyer_id>
	BookScheduled      = "book_scheduled:"      // book_scheduled:<lawyer_id>
	Confirm            = "confirm:"             // confirm:<consultation_id>
	Start              = "start:"               // start:<consultation_id>
	Complete           = "complete:"            // complete:<consultation_id>
	CancelConsultation = "cancel_consultation:" // cancel_consultation:<consultation_id>
	Rate               = "rate:"                // rate:<consultation_id>:<score>
)

// LawyerActions кнопки записи к юристу
func LawyerActions(lawyerID uuid.UUID) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		Button("⚡ Срочно", BookEmergency+lawyerID.String()),
		Button("📅 Записаться на время", BookScheduled+lawyerID.String()),
	}
}

// ConsultationActions кнопки, доступные viewer в текущем статусе
func ConsultationActions(c *model.Consultation, viewer uuid.UUID) *models.InlineKeyboardMarkup {
	id := c.ID().String()
	isLawyer := viewer == c.LawyerID()
	isClient := viewer == c.ClientID()
	kb := NewBuilder()

	switch c.Status() {
	case model.ConsultationStatusPending:
		if isLawyer {
			kb.Row(Button("✅ Подтвердить", Confirm+id))
		}
	case model.ConsultationStatusConfirmed:
		if isLawyer {
			kb.Row(Button("▶️ Начать", Start+id))
		}
	case model.ConsultationStatusInProgress:
		if isLawyer {
			kb.Row(Button("🏁 Завершить", Complete+id))
		}
	case model.ConsultationStatusCompleted:
		if isClient && !c.IsRated() {
			row := make([]models.InlineKeyboardButton, 0, model.MaxRating)
			for score := model.MinRating; score <= model.MaxRating; score++ {
				row = append(row, Button(fmt.Sprintf("%d⭐", score), fmt.Sprintf("%s%s:%d", Rate, id, score)))
			}
			kb.Row(row...)
		}
	}

	if !c.Status().IsTerminal() && (isLawyer || isClient) {
		kb.Row(Button("❌ Отменить", CancelConsultation+id))
	}

	return kb.Build()
}
