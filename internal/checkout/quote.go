package checkout

import (
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ServiceFee is percent of subtotal, rounded half away from zero to cents.
func ServiceFee(subtotal, percent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(percent).Div(hundred).Round(2)
}

// QuoteFor builds the display total for a subtotal. It is never charged.
func QuoteFor(subtotal, percent decimal.Decimal) models.Quote {
	fee := ServiceFee(subtotal, percent)
	return models.Quote{
		Subtotal:   subtotal,
		ServiceFee: fee,
		Total:      subtotal.Add(fee),
	}
}
