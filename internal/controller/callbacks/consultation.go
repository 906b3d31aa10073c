package callbacks

import (
	"fmt"

	"github.com/Freeeeeet/legal_consult/internal/controller/formatting"
	"github.com/Freeeeeet/legal_consult/internal/controller/state"
	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"go.uber.org/zap"
)

func handleBookEmergency(hc *HandlerContext, action Action) {
	c, err := hc.Handler.ConsultationService.Book(hc.Ctx, service.BookCommand{
		ClientID: hc.User.ID,
		LawyerID: action.ID,
		Type:     model.ConsultationTypeEmergency,
	})
	if err != nil {
		hc.Fail(err, "book_emergency")
		return
	}

	hc.Answer("✅ Заявка отправлена")
	hc.Send(formatting.FormatConsultation(c, hc.Handler.Location)+"\n\n⏳ Ожидает оплаты и подтверждения юристом.", nil)
}

// handleBookScheduled начинает диалог ввода времени
func handleBookScheduled(hc *HandlerContext, action Action) {
	if action.ID == hc.User.ID {
		hc.AnswerAlert("❌ Нельзя записаться к самому себе")
		return
	}

	hc.Handler.StateManager.Begin(hc.TelegramID, state.StateEnteringSlot, map[string]string{
		state.KeyLawyerID: action.ID.String(),
	})

	hc.Answer("")
	hc.Send(fmt.Sprintf(
		"📅 Введите дату, время и длительность в минутах (от %d до %d).\n\nПример: 15.01.2030 10:00 60\nОтмена: /cancel",
		formatting.MinSlotMinutes, formatting.MaxSlotMinutes,
	), nil)
}

// handleConfirm юрист подтверждает заявку только после оплаты
func handleConfirm(hc *HandlerContext, action Action) {
	c, err := hc.Handler.PaymentService.ConfirmPaid(hc.Ctx, action.ID, hc.User.ID)
	if err != nil {
		hc.Fail(err, "confirm")
		return
	}

	hc.Handler.Logger.Info("Consultation confirmed via bot",
		zap.String("consultation_id", c.ID().String()),
		zap.String("lawyer_id", hc.User.ID.String()))
	hc.Answer("✅ Подтверждено")
	hc.ShowConsultation(c)
}

func handleStart(hc *HandlerContext, action Action) {
	c, err := hc.Handler.ConsultationService.Start(hc.Ctx, action.ID, hc.User.ID)
	if err != nil {
		hc.Fail(err, "start")
		return
	}
	hc.Answer("▶️ Консультация началась")
	hc.ShowConsultation(c)
}

func handleComplete(hc *HandlerContext, action Action) {
	c, err := hc.Handler.ConsultationService.Complete(hc.Ctx, action.ID, hc.User.ID)
	if err != nil {
		hc.Fail(err, "complete")
		return
	}
	hc.Answer("🏁 Консультация завершена")
	hc.ShowConsultation(c)
}

// handleCancel проверяет доступ и начинает диалог ввода причины
func handleCancel(hc *HandlerContext, action Action) {
	c, err := hc.Handler.ConsultationService.Get(hc.Ctx, action.ID, hc.User.ID)
	if err != nil {
		hc.Fail(err, "cancel")
		return
	}
	if c.Status().IsTerminal() {
		hc.Fail(model.ErrInvalidTransition, "cancel")
		return
	}

	hc.Handler.StateManager.Begin(hc.TelegramID, state.StateEnteringCancelReason, map[string]string{
		state.KeyConsultationID: action.ID.String(),
	})

	hc.Answer("")
	hc.Send(fmt.Sprintf("📝 Напишите причину отмены консультации #%s\n\nПрервать: /cancel", formatting.ShortID(c)), nil)
}

func handleRate(hc *HandlerContext, action Action) {
	c, err := hc.Handler.ConsultationService.Rate(hc.Ctx, action.ID, hc.User.ID, action.Score, "")
	if err != nil {
		hc.Fail(err, "rate")
		return
	}
	hc.Answer("⭐ Спасибо за оценку!")
	hc.ShowConsultation(c)
}
