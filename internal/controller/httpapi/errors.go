package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"go.uber.org/zap"
)

// statusFor переводит доменную ошибку в HTTP-статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidConsultation),
		errors.Is(err, model.ErrInvalidRating),
		errors.Is(err, model.ErrReasonRequired),
		errors.Is(err, model.ErrInvalidQuery),
		errors.Is(err, model.ErrInvalidTimeSlot),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidCurrency):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrLawyerBusy),
		errors.Is(err, model.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrPaymentRequired):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
