// Package order implements the checkout transaction and the order status
// lifecycle with its append-only history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/canopyshop/storefront/internal/outbox"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrEmptyItems is returned when a checkout carries no items.
var ErrEmptyItems = errors.New("items required")

// ErrInvalidQuantity is returned when a line item has a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Status tags an order's position in its lifecycle. The set is flat: any
// status may follow any other, matching the admin back-office behaviour.
type Status string

const (
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusConfirmed           Status = "CONFIRMED"
	StatusOutForDelivery      Status = "OUT_FOR_DELIVERY"
	StatusDelivered           Status = "DELIVERED"
	StatusPaid                Status = "PAID"
	StatusCompleted           Status = "COMPLETED"
	StatusCancelled           Status = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusConfirmed, StatusOutForDelivery,
		StatusDelivered, StatusPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// DefaultNote returns the history note used when a status change carries none.
func (s Status) DefaultNote() string {
	switch s {
	case StatusPendingConfirmation:
		return "Order placed, awaiting confirmation"
	case StatusConfirmed:
		return "Order confirmed"
	case StatusOutForDelivery:
		return "Order is out for delivery"
	case StatusDelivered:
		return "Order delivered"
	case StatusPaid:
		return "Payment received"
	case StatusCompleted:
		return "Order completed"
	case StatusCancelled:
		return "Order cancelled"
	default:
		return "Status updated"
	}
}

// Delivery holds the delivery and contact fields of an order. These remain
// mutable after creation, unlike the total and the item prices.
type Delivery struct {
	Recipient string
	Phone     string
	Address   string
	City      string
	Note      string
}

// Item is an order line with the unit price frozen at order time. It is
// never recomputed from the current variant price.
type Item struct {
	VariantID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// Order is a placed order. Code and TrackingCode are immutable identity;
// Total is fixed at creation.
type Order struct {
	ID           string
	Code         string
	TrackingCode string
	Status       Status
	UserID       string
	GuestEmail   string
	Delivery     Delivery
	Total        int64
	CouponCode   string
	DeliveredAt  *time.Time
	CreatedAt    time.Time
	Items        []Item
}

// IsGuest reports whether the order has no owning user.
func (o *Order) IsGuest() bool {
	return o.UserID == ""
}

// HistoryEntry is one row of an order's append-only status history.
type HistoryEntry struct {
	Status    Status
	Note      string
	Location  string
	CreatedAt time.Time
}

// StatusChange is applied by the repository as one atomic unit together with
// the outbox intents.
type StatusChange struct {
	Status         Status
	Note           string
	Location       string
	StampDelivered bool
}

// Repository defines persistence for orders. Create and ApplyStatus each run
// as a single transaction: Create decrements stock with commit-time
// re-validation, inserts the order, its items, the first history entry, the
// guarded coupon-uses increment, and the outbox intents; any failure leaves
// no partial state.
type Repository interface {
	Create(ctx context.Context, o *Order, intents []outbox.Intent) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	GetByTrackingCode(ctx context.Context, code string) (*Order, error)
	ApplyStatus(ctx context.Context, orderID string, change StatusChange, intents []outbox.Intent) error
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)
}
