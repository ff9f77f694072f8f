package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/canopyshop/storefront/internal/audit"
	"github.com/canopyshop/storefront/internal/domain/catalog"
	"github.com/canopyshop/storefront/internal/domain/coupon"
	"github.com/canopyshop/storefront/internal/notify"
	"github.com/canopyshop/storefront/internal/outbox"
)

// ItemInput is a requested (variant, quantity) pair.
type ItemInput struct {
	VariantID string
	Quantity  int
}

// CheckoutInput holds everything needed to turn an item list into an order.
type CheckoutInput struct {
	Items      []ItemInput
	CouponCode string
	UserID     string
	GuestEmail string
	Delivery   Delivery
}

// CheckoutResult summarizes a placed order.
type CheckoutResult struct {
	OrderID      string
	Code         string
	TrackingCode string
	Total        int64
	Guest        bool
}

// Service encapsulates order placement and status lifecycle logic.
type Service struct {
	catalog   catalog.Repository
	coupons   coupon.Validator
	orders    Repository
	directory notify.Directory
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	cat catalog.Repository,
	coupons coupon.Validator,
	orders Repository,
	directory notify.Directory,
) *Service {
	return &Service{
		catalog:   cat,
		coupons:   coupons,
		orders:    orders,
		directory: directory,
	}
}

// Checkout validates the item list against current stock, applies the coupon,
// and persists the order atomically with the stock decrements. Stock
// sufficiency is checked twice: here, for an early friendly failure, and
// again inside the transaction, where the guarded decrement is authoritative
// under concurrency. Notification and audit side effects are written as
// outbox intents in the same transaction and dispatched after commit.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids[i] = item.VariantID
	}

	// Batch fetch all variants in a single query.
	fetched, err := s.catalog.GetVariants(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	variants := make(map[string]catalog.Variant, len(fetched))
	for _, v := range fetched {
		variants[v.ID] = v
	}

	var subtotal int64
	lines := make([]Item, len(in.Items))
	for i, item := range in.Items {
		v, ok := variants[item.VariantID]
		if !ok {
			return nil, &catalog.InvalidItemError{VariantID: item.VariantID}
		}
		if v.Stock < item.Quantity {
			return nil, &catalog.InsufficientStockError{
				VariantID: v.ID,
				Name:      v.Name,
				Available: v.Stock,
				Requested: item.Quantity,
			}
		}
		lines[i] = Item{
			VariantID: v.ID,
			Name:      v.Name,
			Quantity:  item.Quantity,
			UnitPrice: v.UnitPrice(),
		}
		subtotal += v.UnitPrice() * int64(item.Quantity)
	}

	total := subtotal
	couponCode := ""
	if in.CouponCode != "" {
		discount, err := s.coupons.Validate(ctx, in.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		couponCode = discount.Code
		total = subtotal - discount.Amount
		if total < 0 {
			total = 0
		}
	}

	code, err := NewCode()
	if err != nil {
		return nil, err
	}
	tracking, err := NewTrackingCode()
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:           uuid.NewString(),
		Code:         code,
		TrackingCode: tracking,
		Status:       StatusPendingConfirmation,
		UserID:       in.UserID,
		GuestEmail:   in.GuestEmail,
		Delivery:     in.Delivery,
		Total:        total,
		CouponCode:   couponCode,
		Items:        lines,
	}

	intents := []outbox.Intent{
		outbox.MustIntent(outbox.KindAudit, audit.Event{Type: "order_created", Fields: map[string]any{
			"order_id": o.ID,
			"code":     o.Code,
			"total":    o.Total,
			"guest":    o.IsGuest(),
		}}),
	}
	if email := s.recipient(ctx, o); email != "" {
		intents = append(intents, outbox.MustIntent(outbox.KindNotification, notify.Message{
			Channel:     notify.ChannelEmail,
			Destination: email,
			Subject:     fmt.Sprintf("Order %s received", o.Code),
			Body:        fmt.Sprintf("Thank you! Your order %s is awaiting confirmation. Track it with code %s.", o.Code, o.TrackingCode),
		}))
	}

	if err := s.orders.Create(ctx, o, intents); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		OrderID:      o.ID,
		Code:         o.Code,
		TrackingCode: o.TrackingCode,
		Total:        o.Total,
		Guest:        o.IsGuest(),
	}, nil
}

// GetByTrackingCode resolves an order for unauthenticated tracking lookups.
func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*Order, error) {
	return s.orders.GetByTrackingCode(ctx, code)
}

// History returns the order's status history in chronological order.
func (s *Service) History(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	return s.orders.History(ctx, orderID)
}

// recipient resolves the notification email for an order: the owning user's
// registered address, else the guest email, else none. Directory failures
// only suppress the notification.
func (s *Service) recipient(ctx context.Context, o *Order) string {
	if o.UserID != "" {
		contact, err := s.directory.Contact(ctx, o.UserID)
		if err == nil && contact.Email != "" {
			return contact.Email
		}
		return ""
	}
	return o.GuestEmail
}
