package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	TelegramID        int64     `json:"telegram_id"`
	Username          string    `json:"username"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	IsLawyer          bool      `json:"is_lawyer"`
	ConsultationPrice int64     `json:"consultation_price"` // в копейках/центах
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
}

// DisplayName имя для сообщений
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		if u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.ID.String()
}

// Price цена консультации юриста
func (u *User) Price() (Price, error) {
	currency := u.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return NewPrice(u.ConsultationPrice, currency)
}
