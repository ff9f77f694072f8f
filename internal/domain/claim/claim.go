// Package claim implements the guarantee claim workflow: post-delivery
// refund/return requests gated by order status.
package claim

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status tags a claim's position in its review lifecycle. Like order
// statuses, the set is flat for admin review purposes.
type Status string

const (
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusRefunded    Status = "REFUNDED"
)

// Valid reports whether s is a known claim status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether the claim is settled. An order may carry any
// number of terminal claims but at most one open claim.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRefunded
}

var (
	// ErrNotFound is returned when a requested claim does not exist.
	ErrNotFound = errors.New("claim not found")
	// ErrNotEligible is returned when the order status does not admit claims.
	ErrNotEligible = errors.New("order is not eligible for a guarantee claim")
	// ErrDuplicate is returned when the order already has an open claim.
	ErrDuplicate = errors.New("an open claim already exists for this order")
	// ErrForbidden is returned when the caller does not own the order.
	ErrForbidden = errors.New("order belongs to another user")
	// ErrUnknownStatus is returned for a status value outside the enum.
	ErrUnknownStatus = errors.New("unknown claim status")
)

// Claim is a guarantee claim on one order.
type Claim struct {
	ID        string
	OrderID   string
	Reason    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence for claims.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id string) (*Claim, error)
	// HasOpen reports whether the order has a claim in a non-terminal state.
	HasOpen(ctx context.Context, orderID string) (bool, error)
	SetStatus(ctx context.Context, id string, status Status) error
}
