// Package money holds the bounds of stored monetary amounts.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// Max is the largest amount a NUMERIC(10,2) column holds.
var Max = decimal.RequireFromString("99999999.99")

// Fits reports whether d, rounded to cents, can be stored.
func Fits(d decimal.Decimal) bool {
	return d.Round(2).Abs().LessThanOrEqual(Max)
}

// Check returns an Invalid fault naming field when d cannot be stored.
func Check(field string, d decimal.Decimal) error {
	if Fits(d) {
		return nil
	}
	return fault.Invalidf("%s must not exceed %s", field, Max.StringFixed(2))
}
