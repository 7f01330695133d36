// Package money holds the rounding rules shared by every price computation.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places of the currency's minor unit.
const Places = 2

// Round rounds d to the minor unit, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Discount applies percent (0..100) to base and rounds the resulting unit price.
// base - base*percent/100, rounded once at the end.
func Discount(base, percent decimal.Decimal) decimal.Decimal {
	off := base.Mul(percent).Shift(-2)
	return Round(base.Sub(off))
}

// Mul multiplies a unit price by a quantity. Exact for minor-unit prices.
func Mul(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Parse reads a decimal string and rounds it to the minor unit.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(d), nil
}
