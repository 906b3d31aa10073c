package formatting

import (
	"fmt"

	"github.com/Freeeeeet/legal_consult/internal/model"
)

var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
}

// FormatPrice форматирует цену из копеек, без копеек если они равны 0
func FormatPrice(p model.Price) string {
	symbol, ok := currencySymbols[p.Currency()]
	if !ok {
		symbol = p.Currency()
	}

	amount := p.Amount()
	if amount%100 == 0 {
		return fmt.Sprintf("%d %s", amount/100, symbol)
	}
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, symbol)
}
