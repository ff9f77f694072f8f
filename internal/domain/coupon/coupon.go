// Package coupon implements coupon rules and discount evaluation.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage subtracts a percentage of the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed subtracts a flat minor-unit amount, capped at the subtotal.
	KindFixed Kind = "fixed"
)

// Sentinel errors distinguish the user-visible coupon failure modes: clients
// re-prompt for an unknown code but remove an expired or exhausted one.
var (
	ErrNotFound  = errors.New("coupon not found")
	ErrExpired   = errors.New("coupon expired")
	ErrExhausted = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and redemption constraints.
// Value is NUMERIC in storage so percentage coupons can carry fractional
// percentages; fixed coupons interpret it as minor currency units.
type Rule struct {
	Code      string
	Kind      Kind
	Value     decimal.Decimal
	ExpiresAt *time.Time
	MaxUses   *int
	Uses      int
}

// Expired reports whether the rule is past its expiry at the given instant.
// Rules without an expiry never expire.
func (r *Rule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Exhausted reports whether the rule has reached its redemption cap. The
// authoritative check happens inside the checkout transaction; this one only
// rejects early with a friendlier error.
func (r *Rule) Exhausted() bool {
	return r.MaxUses != nil && r.Uses >= *r.MaxUses
}

// Discount holds the evaluated discount for a checkout subtotal.
type Discount struct {
	Code   string
	Amount int64
}

// Repository provides lookup of coupon rules by code (case-insensitive).
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Validator resolves a coupon code against a checkout subtotal and returns
// the computed discount.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal int64) (*Discount, error)
}
