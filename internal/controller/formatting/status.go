package formatting

import "github.com/Freeeeeet/legal_consult/internal/model"

// StatusDisplay emoji и подпись статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса консультации
func GetStatusDisplay(status model.ConsultationStatus) StatusDisplay {
	displays := map[model.ConsultationStatus]StatusDisplay{
		model.ConsultationStatusPending:    {"⏳", "Ожидает подтверждения"},
		model.ConsultationStatusConfirmed:  {"✅", "Подтверждена"},
		model.ConsultationStatusInProgress: {"💬", "Идёт"},
		model.ConsultationStatusCompleted:  {"✔️", "Завершена"},
		model.ConsultationStatusCancelled:  {"❌", "Отменена"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}

// TypeText подпись типа консультации
func TypeText(t model.ConsultationType) string {
	switch t {
	case model.ConsultationTypeEmergency:
		return "⚡ Срочная"
	case model.ConsultationTypeScheduled:
		return "📅 По записи"
	default:
		return "❓ Неизвестный тип"
	}
}
