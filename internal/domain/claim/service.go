package claim

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/canopyshop/storefront/internal/audit"
	"github.com/canopyshop/storefront/internal/domain/order"
)

// eligible lists the order statuses that admit a guarantee claim: the goods
// must have reached the customer.
var eligible = map[order.Status]bool{
	order.StatusDelivered: true,
	order.StatusPaid:      true,
	order.StatusCompleted: true,
}

// Service encapsulates claim filing and review.
type Service struct {
	claims Repository
	orders order.Repository
	audit  audit.Recorder
}

// NewService creates a claim Service with the required dependencies.
func NewService(claims Repository, orders order.Repository, rec audit.Recorder) *Service {
	return &Service{claims: claims, orders: orders, audit: rec}
}

// FileInput carries one claim filing request. CallerUserID is empty for
// unauthenticated callers.
type FileInput struct {
	OrderCode    string
	Reason       string
	CallerUserID string
}

// File creates a claim on the order identified by its code. Authenticated
// callers must own the order; the order must be in a post-delivery status;
// and no other claim on it may still be open.
func (s *Service) File(ctx context.Context, in FileInput) (*Claim, error) {
	o, err := s.orders.GetByCode(ctx, in.OrderCode)
	if err != nil {
		return nil, err
	}

	if in.CallerUserID != "" && o.UserID != "" && o.UserID != in.CallerUserID {
		return nil, ErrForbidden
	}
	if !eligible[o.Status] {
		return nil, ErrNotEligible
	}

	open, err := s.claims.HasOpen(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check open claims")
	}
	if open {
		return nil, ErrDuplicate
	}

	c := &Claim{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Reason:  in.Reason,
		Status:  StatusSubmitted,
	}
	if err := s.claims.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create claim")
	}

	s.record(ctx, audit.Event{Type: "claim_filed", Fields: map[string]any{
		"claim_id": c.ID,
		"order_id": o.ID,
	}})
	return c, nil
}

// Review sets a claim's status during admin review. Any enum value is
// accepted as the next status; the prior and new status are audited.
func (s *Service) Review(ctx context.Context, claimID string, status Status, actor string) (*Claim, error) {
	if !status.Valid() {
		return nil, ErrUnknownStatus
	}

	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	prior := c.Status
	if err := s.claims.SetStatus(ctx, c.ID, status); err != nil {
		return nil, errors.Wrap(err, "set claim status")
	}
	c.Status = status

	s.record(ctx, audit.Event{Type: "claim_reviewed", Fields: map[string]any{
		"claim_id": c.ID,
		"from":     string(prior),
		"to":       string(status),
		"actor":    actor,
	}})
	return c, nil
}

// record writes the audit event best-effort; audit failures never affect the
// claim operation that produced them.
func (s *Service) record(ctx context.Context, ev audit.Event) {
	_ = s.audit.Record(ctx, ev)
}
