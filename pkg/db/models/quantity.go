package models

import "github.com/shopspring/decimal"

// QuantityScale is the number of fractional digits every numeric(18,4)
// quantity and money column keeps.
const QuantityScale int32 = 4

// FitsQuantityScale reports whether d survives storage without rounding.
// Trailing zeros beyond the scale are fine.
func FitsQuantityScale(d decimal.Decimal) bool {
	return d.Exponent() >= -QuantityScale || d.Equal(d.Truncate(QuantityScale))
}
