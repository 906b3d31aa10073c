package state

import "time"

// UserState текущий шаг диалога пользователя с ботом
type UserState string

const (
	StateNone UserState = "" // Нет активного диалога

	// Клиент вводит время плановой консультации
	StateEnteringSlot UserState = "entering_slot"

	// Сторона консультации вводит причину отмены
	StateEnteringCancelReason UserState = "entering_cancel_reason"
)

// Ключи данных диалога
const (
	KeyLawyerID       = "lawyer_id"
	KeyConsultationID = "consultation_id"
)

// DefaultDialogTTL сколько живёт незавершённый диалог
const DefaultDialogTTL = 30 * time.Minute

// UserData временные данные диалога
type UserData struct {
	State     UserState
	Data      map[string]string
	ExpiresAt time.Time
}
