// Package httpapi REST API консультаций поверх chi
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallerHeader идентификатор пользователя, проставляемый шлюзом аутентификации
const CallerHeader = "X-User-ID"

const defaultPageSize = 20

// ConsultationService команды и запросы по консультациям
type ConsultationService interface {
	Book(ctx context.Context, cmd service.BookCommand) (*model.Consultation, error)
	Start(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error)
	Complete(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error)
	Cancel(ctx context.Context, id, caller uuid.UUID, reason string) (*model.Consultation, error)
	Rate(ctx context.Context, id, caller uuid.UUID, score int, review string) (*model.Consultation, error)
	Get(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error)
	ListByClient(ctx context.Context, caller, clientID uuid.UUID, status *model.ConsultationStatus, limit, offset int) (*service.Page, error)
	ListByLawyer(ctx context.Context, caller, lawyerID uuid.UUID, status *model.ConsultationStatus, limit, offset int) (*service.Page, error)
	ListPendingByLawyer(ctx context.Context, caller, lawyerID uuid.UUID, limit int) ([]*model.Consultation, error)
}

// PaymentService приём сигналов платёжного шлюза и подтверждение оплаченных заявок
type PaymentService interface {
	HandleSignal(ctx context.Context, sig service.PaymentSignal) (*model.Payment, error)
	ConfirmPaid(ctx context.Context, id, caller uuid.UUID) (*model.Consultation, error)
}

// HistoryService журнал событий консультации
type HistoryService interface {
	History(ctx context.Context, id, caller uuid.UUID) ([]model.Event, error)
}

type Handler struct {
	consultations ConsultationService
	payments      PaymentService
	history       HistoryService
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewHandler(consultations ConsultationService, payments PaymentService, history HistoryService, logger *zap.Logger) *Handler {
	return &Handler{
		consultations: consultations,
		payments:      payments,
		history:       history,
		validate:      validator.New(),
		logger:        logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if !h.decode(w, r, &req) {
		return
	}

	consultType, err := model.ParseConsultationType(req.Type)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", model.ErrInvalidConsultation, err))
		return
	}

	cmd := service.BookCommand{
		ClientID: caller,
		LawyerID: uuid.MustParse(req.LawyerID),
		Type:     consultType,
	}
	if (req.SlotStart == nil) != (req.SlotEnd == nil) {
		h.writeError(w, r, fmt.Errorf("%w: slot_start and slot_end must be set together", model.ErrInvalidConsultation))
		return
	}
	if req.SlotStart != nil {
		slot, err := model.NewTimeSlot(*req.SlotStart, *req.SlotEnd)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %w", model.ErrInvalidConsultation, err))
			return
		}
		cmd.Slot = &slot
	}

	c, err := h.consultations.Book(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConsultationResponse(c))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	c, err := h.consultations.Get(r.Context(), id, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	events, err := h.history.History(r.Context(), id, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventsResponse(events))
}

// Confirm доступен юристу только после успешной оплаты
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(ctx context.Context) (*model.Consultation, error) {
		return h.payments.ConfirmPaid(ctx, id, caller)
	})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(ctx context.Context) (*model.Consultation, error) {
		return h.consultations.Start(ctx, id, caller)
	})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(ctx context.Context) (*model.Consultation, error) {
		return h.consultations.Complete(ctx, id, caller)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.respond(w, r, func(ctx context.Context) (*model.Consultation, error) {
		return h.consultations.Cancel(ctx, id, caller, req.Reason)
	})
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}

	var req rateRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.respond(w, r, func(ctx context.Context) (*model.Consultation, error) {
		return h.consultations.Rate(ctx, id, caller, req.Rating, req.Review)
	})
}

func (h *Handler) ListByClient(w http.ResponseWriter, r *http.Request) {
	caller, partyID, ok := callerAndID(w, r)
	if !ok {
		return
	}
	status, limit, offset, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.consultations.ListByClient(r.Context(), caller, partyID, status, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) ListByLawyer(w http.ResponseWriter, r *http.Request) {
	caller, partyID, ok := callerAndID(w, r)
	if !ok {
		return
	}
	status, limit, offset, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.consultations.ListByLawyer(r.Context(), caller, partyID, status, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) ListPendingByLawyer(w http.ResponseWriter, r *http.Request) {
	caller, lawyerID, ok := callerAndID(w, r)
	if !ok {
		return
	}
	_, limit, _, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.consultations.ListPendingByLawyer(r.Context(), caller, lawyerID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(&service.Page{Items: items, Total: len(items), Limit: limit}))
}

// PaymentWebhook сигнал платёжного шлюза. Повторная доставка безопасна
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.payments.HandleSignal(r.Context(), service.PaymentSignal{
		ConsultationID: uuid.MustParse(req.ConsultationID),
		Succeeded:      req.Status == string(model.PaymentStatusSucceeded),
		ProviderRef:    req.ProviderRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (*model.Consultation, error)) {
	c, err := fn(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationResponse(c))
}

// decode читает JSON и проверяет теги validate
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeBadRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "validation: " + strings.Join(parts, ", ")
}

func callerFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + CallerHeader})
		return uuid.Nil, false
	}
	caller, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid " + CallerHeader})
		return uuid.Nil, false
	}
	return caller, true
}

func callerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid id")
		return uuid.Nil, uuid.Nil, false
	}
	return caller, id, true
}

// pageParams не подставляет границы: выход за диапазон проверяет сервис
func pageParams(r *http.Request) (*model.ConsultationStatus, int, int, error) {
	q := r.URL.Query()

	var status *model.ConsultationStatus
	if raw := q.Get("status"); raw != "" {
		s, err := model.ParseConsultationStatus(raw)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %w", model.ErrInvalidQuery, err)
		}
		status = &s
	}

	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: limit: %w", model.ErrInvalidQuery, err)
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: offset: %w", model.ErrInvalidQuery, err)
	}

	return status, limit, offset, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
