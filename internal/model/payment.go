package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment результат оплаты консультации, пришедший от платёжного шлюза
type Payment struct {
	ConsultationID uuid.UUID     `json:"consultation_id"`
	Status         PaymentStatus `json:"status"`
	ProviderRef    string        `json:"provider_ref"`
	ReceivedAt     time.Time     `json:"received_at"`
}

func (p *Payment) Succeeded() bool {
	return p != nil && p.Status == PaymentStatusSucceeded
}
