// Package notify defines the outbound notification contract. Delivery
// mechanics (SMTP, WhatsApp gateways) live outside this system; the core
// only needs a send call whose failure never affects a committed order.
package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Channel selects a delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Message is one notification to deliver.
type Message struct {
	Channel     Channel `json:"channel"`
	Destination string  `json:"destination"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrUnknownUser is returned when a user id cannot be resolved to a contact.
var ErrUnknownUser = errors.New("unknown user")

// Contact holds the notification endpoints on file for a user.
type Contact struct {
	Email string
	Phone string
}

// Directory resolves user ids to contacts. User management itself is an
// external concern; the core only reads.
type Directory interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// LogSender is a Sender that records messages to the service log instead of
// delivering them. It stands in for real channel integrations in development
// and in deployments where delivery is handled downstream.
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(ctx context.Context, msg Message) error {
	zctx.From(ctx).Info("Notification",
		zap.String("channel", string(msg.Channel)),
		zap.String("destination", msg.Destination),
		zap.String("subject", msg.Subject),
	)
	return nil
}
