package httpapi

import (
	"time"

	"github.com/Freeeeeet/legal_consult/internal/model"
	"github.com/Freeeeeet/legal_consult/internal/service"
)

type bookRequest struct {
	LawyerID  string     `json:"lawyer_id" validate:"required,uuid"`
	Type      string     `json:"type" validate:"required,oneof=emergency scheduled"`
	SlotStart *time.Time `json:"slot_start" validate:"required_if=Type scheduled"`
	SlotEnd   *time.Time `json:"slot_end" validate:"required_if=Type scheduled"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type rateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type paymentWebhookRequest struct {
	ConsultationID string `json:"consultation_id" validate:"required,uuid"`
	Status         string `json:"status" validate:"required,oneof=succeeded failed"`
	ProviderRef    string `json:"provider_ref" validate:"max=255"`
}

type priceResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ratingResponse struct {
	Score   int       `json:"score"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type consultationResponse struct {
	ID                 string          `json:"id"`
	ClientID           string          `json:"client_id"`
	LawyerID           string          `json:"lawyer_id"`
	Type               string          `json:"type"`
	Status             string          `json:"status"`
	Price              priceResponse   `json:"price"`
	Slot               *slotResponse   `json:"slot,omitempty"`
	Rating             *ratingResponse `json:"rating,omitempty"`
	CancelledBy        *string         `json:"cancelled_by,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	Version            int64           `json:"version"`
}

type pageResponse struct {
	Items  []consultationResponse `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type paymentResponse struct {
	ConsultationID string    `json:"consultation_id"`
	Status         string    `json:"status"`
	ProviderRef    string    `json:"provider_ref,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

type eventResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Version    int64       `json:"version"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    model.Event `json:"payload"`
}

type eventsResponse struct {
	Items []eventResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toConsultationResponse(c *model.Consultation) consultationResponse {
	resp := consultationResponse{
		ID:       c.ID().String(),
		ClientID: c.ClientID().String(),
		LawyerID: c.LawyerID().String(),
		Type:     string(c.Type()),
		Status:   string(c.Status()),
		Price: priceResponse{
			Amount:   c.Price().Amount(),
			Currency: c.Price().Currency(),
		},
		CancellationReason: c.CancellationReason(),
		CreatedAt:          c.CreatedAt(),
		ConfirmedAt:        c.ConfirmedAt(),
		StartedAt:          c.StartedAt(),
		CompletedAt:        c.CompletedAt(),
		CancelledAt:        c.CancelledAt(),
		Version:            c.Version(),
	}

	if slot := c.TimeSlot(); slot != nil {
		resp.Slot = &slotResponse{Start: slot.Start(), End: slot.End()}
	}
	if r := c.Rating(); r != nil {
		resp.Rating = &ratingResponse{Score: r.Score, Review: r.Review, RatedAt: r.RatedAt}
	}
	if by := c.CancelledBy(); by != nil {
		s := by.String()
		resp.CancelledBy = &s
	}

	return resp
}

func toPageResponse(p *service.Page) pageResponse {
	items := make([]consultationResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, toConsultationResponse(c))
	}
	return pageResponse{Items: items, Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ConsultationID: p.ConsultationID.String(),
		Status:         string(p.Status),
		ProviderRef:    p.ProviderRef,
		ReceivedAt:     p.ReceivedAt,
	}
}

func toEventsResponse(events []model.Event) eventsResponse {
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		meta := e.Meta()
		items = append(items, eventResponse{
			ID:         meta.ID.String(),
			Name:       string(e.Name()),
			Version:    meta.Version,
			OccurredAt: meta.OccurredAt,
			Payload:    e,
		})
	}
	return eventsResponse{Items: items}
}
