package model

import "errors"

// Ошибки домена консультаций. Транспортный слой переводит их в свои коды ответа.
var (
	ErrInvalidConsultation = errors.New("invalid consultation")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnauthorized        = errors.New("caller is not allowed to perform this action")
	ErrLawyerBusy          = errors.New("lawyer already has an active consultation")
	ErrNotFound            = errors.New("consultation not found")
	ErrConcurrencyConflict = errors.New("consultation was modified concurrently")
	ErrInvalidQuery        = errors.New("invalid query parameters")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrReasonRequired      = errors.New("cancellation reason is required")
	ErrPaymentRequired     = errors.New("consultation is not paid")

	// Ошибки value objects
	ErrInvalidTimeSlot  = errors.New("time slot end must be after start")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrInvalidCurrency  = errors.New("currency must be a 3-letter code")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

var domainErrors = []error{
	ErrInvalidConsultation,
	ErrInvalidTransition,
	ErrUnauthorized,
	ErrLawyerBusy,
	ErrNotFound,
	ErrConcurrencyConflict,
	ErrInvalidQuery,
	ErrInvalidRating,
	ErrReasonRequired,
	ErrPaymentRequired,
	ErrInvalidTimeSlot,
	ErrInvalidAmount,
	ErrInvalidCurrency,
	ErrCurrencyMismatch,
}

// IsDomainError сообщает, что ошибка относится к бизнес-правилам, а не к инфраструктуре
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable сообщает, стоит ли перезапустить команду целиком
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
