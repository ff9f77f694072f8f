package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/canopyshop/storefront/internal/audit"
	"github.com/canopyshop/storefront/internal/notify"
	"github.com/canopyshop/storefront/internal/outbox"
)

// ErrUnknownStatus is returned for a status value outside the enum.
var ErrUnknownStatus = errors.New("unknown order status")

// SetStatusInput carries one status transition request.
type SetStatusInput struct {
	OrderID  string
	Status   Status
	Note     string
	Location string
	Actor    string
}

// SetStatus applies a status transition: it updates the order, appends
// exactly one history entry, and queues the audit event and status
// notifications as outbox intents in the same transaction. The transition is
// complete once the transaction commits; notification delivery happens
// afterwards and its outcome never surfaces here. Transitioning to DELIVERED
// stamps the delivery timestamp. The status set is deliberately flat: no
// adjacency is enforced between old and new status.
func (s *Service) SetStatus(ctx context.Context, in SetStatusInput) (*Order, error) {
	if !in.Status.Valid() {
		return nil, ErrUnknownStatus
	}

	o, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	note := in.Note
	if note == "" {
		note = in.Status.DefaultNote()
	}

	change := StatusChange{
		Status:         in.Status,
		Note:           note,
		Location:       in.Location,
		StampDelivered: in.Status == StatusDelivered,
	}

	intents := []outbox.Intent{
		outbox.MustIntent(outbox.KindAudit, audit.Event{Type: "order_status_changed", Fields: map[string]any{
			"order_id": o.ID,
			"from":     string(o.Status),
			"to":       string(in.Status),
			"actor":    in.Actor,
		}}),
	}
	if in.Status == StatusOutForDelivery && o.Delivery.Phone != "" {
		intents = append(intents, outbox.MustIntent(outbox.KindNotification, notify.Message{
			Channel:     notify.ChannelWhatsApp,
			Destination: o.Delivery.Phone,
			Subject:     fmt.Sprintf("Order %s", o.Code),
			Body:        fmt.Sprintf("Your order %s is out for delivery.", o.Code),
		}))
	}
	if email := s.recipient(ctx, o); email != "" {
		intents = append(intents, outbox.MustIntent(outbox.KindNotification, notify.Message{
			Channel:     notify.ChannelEmail,
			Destination: email,
			Subject:     fmt.Sprintf("Order %s update", o.Code),
			Body:        note,
		}))
	}

	if err := s.orders.ApplyStatus(ctx, o.ID, change, intents); err != nil {
		return nil, err
	}

	return s.orders.GetByID(ctx, o.ID)
}
