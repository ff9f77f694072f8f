// Package audit records best-effort audit trail events.
package audit

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Event is one audit trail entry. Fields carry event-specific structured
// data such as {from, to, actor} for a status change.
type Event struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Recorder persists audit events. Failures are logged by callers, never
// propagated into the operations that produced the event.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes audit events to the service log under a dedicated
// logger name so they can be routed separately downstream.
type LogRecorder struct{}

// Record logs the event and reports success.
func (LogRecorder) Record(ctx context.Context, ev Event) error {
	zctx.From(ctx).Named("audit").Info("Event",
		zap.String("type", ev.Type),
		zap.Any("fields", ev.Fields),
	)
	return nil
}
