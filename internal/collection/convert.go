package collection

import (
	"github.com/shopspring/decimal"
)

// Convert turns a USD amount into AUD and JPY using the supplied rates. It is
// pure: no network access, no side effects. A nil rate yields a nil amount
// for that currency; a missing rate is data, not an error.
func Convert(amountUSD decimal.Decimal, rateAUD, rateJPY *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	var amountAUD, amountJPY *decimal.Decimal
	if rateAUD != nil {
		v := amountUSD.Mul(*rateAUD)
		amountAUD = &v
	}
	if rateJPY != nil {
		v := amountUSD.Mul(*rateJPY)
		amountJPY = &v
	}
	return amountAUD, amountJPY
}
