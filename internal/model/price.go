package model

import (
	"fmt"
	"strings"
)

// DefaultCurrency валюта по умолчанию для профилей юристов
const DefaultCurrency = "RUB"

// Price сумма в минимальных единицах (копейках/центах) и код валюты ISO 4217
type Price struct {
	amount   int64
	currency string
}

// NewPrice создаёт цену. Отрицательные суммы запрещены
func NewPrice(amount int64, currency string) (Price, error) {
	if amount < 0 {
		return Price{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Price{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Price{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return Price{amount: amount, currency: code}, nil
}

func (p Price) Amount() int64 { return p.amount }

func (p Price) Currency() string { return p.currency }

// IsZero true для бесплатной консультации
func (p Price) IsZero() bool { return p.amount == 0 }

// Add складывает цены одной валюты
func (p Price) Add(other Price) (Price, error) {
	if p.currency != other.currency {
		return Price{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, p.currency, other.currency)
	}
	return Price{amount: p.amount + other.amount, currency: p.currency}, nil
}

// Equal сравнивает цены по значению
func (p Price) Equal(other Price) bool {
	return p.amount == other.amount && p.currency == other.currency
}

func (p Price) String() string {
	return fmt.Sprintf("%d.%02d %s", p.amount/100, p.amount%100, p.currency)
}
