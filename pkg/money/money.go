// Package money holds the decimal helpers shared by the commission and
// settlement services. Amounts are shopspring decimals quantised to the
// configured minimum currency unit.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

var ErrSubUnit = errors.New("amount is finer than the minimum currency unit")

// Percent returns amount*rate/100 rounded half-to-even at scale.
func Percent(amount, rate decimal.Decimal, scale int32) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).RoundBank(scale)
}

// Quantize rejects values that cannot be represented at scale instead of
// silently rounding them.
func Quantize(amount decimal.Decimal, scale int32) (decimal.Decimal, error) {
	q := amount.RoundBank(scale)
	if !q.Equal(amount) {
		return decimal.Zero, ErrSubUnit
	}
	return q, nil
}

// Sum adds values; an empty input yields zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}
