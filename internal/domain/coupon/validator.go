package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks expiry and the
// advisory usage limit, and computes the discount for the subtotal. The
// usage counter itself is incremented by the checkout transaction, not here,
// so concurrent checkouts cannot redeem past the cap.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal int64) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if rule.Expired(v.now()) {
		return nil, ErrExpired
	}
	if rule.Exhausted() {
		return nil, ErrExhausted
	}

	amount, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}

	return &Discount{Code: rule.Code, Amount: amount}, nil
}
