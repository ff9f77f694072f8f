package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/domain/claim"
)

const (
	insertClaimSQL = `INSERT INTO guarantee_claims (id, order_id, reason, status)
		VALUES ($1, $2, $3, $4)`

	getClaimByIDSQL = `SELECT id, order_id, reason, status, created_at, updated_at
		FROM guarantee_claims WHERE id = $1`

	hasOpenClaimSQL = `SELECT EXISTS (
		SELECT 1 FROM guarantee_claims
		WHERE order_id = $1 AND status NOT IN ('REJECTED', 'REFUNDED'))`

	setClaimStatusSQL = `UPDATE guarantee_claims SET status = $2, updated_at = now()
		WHERE id = $1`
)

var _ claim.Repository = (*ClaimRepository)(nil)

// ClaimRepository implements claim.Repository backed by PostgreSQL.
type ClaimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository returns a ClaimRepository that uses the given pool.
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// Create inserts a new claim row.
func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim) error {
	_, err := r.pool.Exec(ctx, insertClaimSQL, c.ID, c.OrderID, c.Reason, string(c.Status))
	if err != nil {
		return fmt.Errorf("creating claim %q: %w", c.ID, err)
	}
	return nil
}

// GetByID returns the claim, or claim.ErrNotFound.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*claim.Claim, error) {
	rows, err := r.pool.Query(ctx, getClaimByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting claim %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClaim)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, claim.ErrNotFound
		}
		return nil, fmt.Errorf("getting claim %q: %w", id, err)
	}
	return &c, nil
}

// HasOpen reports whether the order has a claim in a non-terminal state.
func (r *ClaimRepository) HasOpen(ctx context.Context, orderID string) (bool, error) {
	var open bool
	err := r.pool.QueryRow(ctx, hasOpenClaimSQL, orderID).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("checking open claims for order %q: %w", orderID, err)
	}
	return open, nil
}

// SetStatus updates the claim status and bumps updated_at.
func (r *ClaimRepository) SetStatus(ctx context.Context, id string, status claim.Status) error {
	cmd, err := r.pool.Exec(ctx, setClaimStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating claim %q: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return claim.ErrNotFound
	}
	return nil
}

func scanClaim(row pgx.CollectableRow) (claim.Claim, error) {
	var (
		c      claim.Claim
		status string
	)
	err := row.Scan(&c.ID, &c.OrderID, &c.Reason, &status, &c.CreatedAt, &c.UpdatedAt)
	c.Status = claim.Status(status)
	return c, err
}
