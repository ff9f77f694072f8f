// Package outbox implements the transactional outbox: domain transactions
// persist intent records alongside their writes, and a worker drains them
// after commit. Side-effect failures can therefore never roll back or block
// a committed state change.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// Kind discriminates what a pending record should be dispatched as.
type Kind string

const (
	// KindNotification is an outbound customer notification to send.
	KindNotification Kind = "notification"
	// KindAudit is an audit trail event to record.
	KindAudit Kind = "audit"
)

// Intent is an unsaved side-effect, created inside a domain transaction.
type Intent struct {
	Kind    Kind
	Payload json.RawMessage
}

// NewIntent marshals payload and wraps it as an Intent.
func NewIntent(kind Kind, payload any) (Intent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Intent{}, errors.Wrap(err, "marshal outbox payload")
	}
	return Intent{Kind: kind, Payload: data}, nil
}

// MustIntent is NewIntent for payloads that cannot fail to marshal
// (plain structs of strings and numbers).
func MustIntent(kind Kind, payload any) Intent {
	in, err := NewIntent(kind, payload)
	if err != nil {
		panic(err)
	}
	return in
}

// Record is a persisted intent awaiting dispatch.
type Record struct {
	ID        int64
	Kind      Kind
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// Store defines persistence for outbox records. Insert is called by the
// domain repositories inside their transactions; FetchPending and MarkSent
// are called by the worker.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}
