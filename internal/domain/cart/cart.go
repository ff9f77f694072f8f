// Package cart implements the cart store: guest and user carts, full-replace
// item updates, and the login/logout merge and ownership-conversion flows.
package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/canopyshop/storefront/internal/domain/catalog"
)

// ErrNotFound is returned when no cart exists for the given identity.
var ErrNotFound = errors.New("cart not found")

// Identity names a cart owner: exactly one of UserID or GuestToken is set.
type Identity struct {
	UserID     string
	GuestToken string
}

// IsGuest reports whether the identity refers to a guest cart.
func (id Identity) IsGuest() bool {
	return id.UserID == ""
}

// Item is a (variant, quantity) pair as submitted by a client.
type Item struct {
	VariantID string
	Quantity  int
}

// Line is a cart line resolved against the catalog.
type Line struct {
	Variant     catalog.Variant
	ProductName string
	Quantity    int
}

// Cart holds the resolved state of a guest or user cart. At most one line
// exists per variant.
type Cart struct {
	ID         string
	UserID     string
	GuestToken string
	Lines      []Line
}

// Subtotal returns the sum of effective unit price times quantity across all
// lines, in minor currency units.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, l := range c.Lines {
		sum += l.Variant.UnitPrice() * int64(l.Quantity)
	}
	return sum
}

// Record is the persisted cart row without resolved lines.
type Record struct {
	ID         string
	UserID     string
	GuestToken string
}

// Repository defines persistence operations for carts. ReplaceItems and
// MergeItems must each execute as a single atomic unit; MergeItems must
// serialize the per-item find-or-increment-or-create against concurrent
// writers to the same cart.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Record, error)
	GetByToken(ctx context.Context, token string) (*Record, error)
	Create(ctx context.Context, rec Record) error
	ReplaceItems(ctx context.Context, cartID string, items []Item) error
	MergeItems(ctx context.Context, cartID string, items []Item) error
	ResolveLines(ctx context.Context, cartID string) ([]Line, error)
	AssignUser(ctx context.Context, cartID, userID string) error
	AssignGuestToken(ctx context.Context, cartID, token string) error
	Delete(ctx context.Context, cartID string) error
}
