package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount amount in minor currency units for the given
// rule and subtotal. Percentage discounts are evaluated with decimal math and
// floored, so a 12.5% coupon on 999 yields 124, never 125. The result is
// clamped to [0, subtotal].
func Apply(rule *Rule, subtotal int64) (int64, error) {
	switch rule.Kind {
	case KindPercentage:
		amount := decimal.NewFromInt(subtotal).Mul(rule.Value).Div(hundred).Floor()
		return clamp(amount.IntPart(), subtotal), nil
	case KindFixed:
		return clamp(rule.Value.Floor().IntPart(), subtotal), nil
	default:
		return 0, errors.Errorf("unsupported coupon kind: %q", rule.Kind)
	}
}

// clamp bounds amount to the [0, subtotal] range.
func clamp(amount, subtotal int64) int64 {
	if amount < 0 {
		return 0
	}
	if amount > subtotal {
		return subtotal
	}
	return amount
}
