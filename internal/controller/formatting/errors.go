package formatting

import (
	"errors"

	"github.com/Freeeeeet/legal_consult/internal/model"
)

// ErrorMessage текст ошибки для пользователя бота
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "❌ Консультация не найдена"
	case errors.Is(err, model.ErrUnauthorized):
		return "❌ У вас нет доступа к этой консультации"
	case errors.Is(err, model.ErrInvalidTransition):
		return "❌ Действие недоступно в текущем статусе консультации"
	case errors.Is(err, model.ErrLawyerBusy):
		return "❌ У юриста уже есть активная консультация"
	case errors.Is(err, model.ErrConcurrencyConflict):
		return "❌ Консультация изменилась, попробуйте ещё раз"
	case errors.Is(err, model.ErrPaymentRequired):
		return "💳 Консультация ещё не оплачена клиентом"
	case errors.Is(err, model.ErrReasonRequired):
		return "❌ Укажите причину отмены"
	case errors.Is(err, model.ErrInvalidRating):
		return "❌ Оценка должна быть от 1 до 5"
	case errors.Is(err, model.ErrInvalidConsultation):
		return "❌ Некорректные данные консультации"
	case errors.Is(err, model.ErrInvalidQuery):
		return "❌ Некорректный запрос"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
