package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/notify"
)

const getUserContactSQL = `SELECT email, phone FROM users WHERE id = $1`

var _ notify.Directory = (*UserDirectory)(nil)

// UserDirectory resolves user ids to notification contacts from the mirrored
// users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory returns a UserDirectory that uses the given pool.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// Contact returns the user's contact endpoints, or notify.ErrUnknownUser.
func (d *UserDirectory) Contact(ctx context.Context, userID string) (notify.Contact, error) {
	var c notify.Contact
	err := d.pool.QueryRow(ctx, getUserContactSQL, userID).Scan(&c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notify.Contact{}, notify.ErrUnknownUser
		}
		return notify.Contact{}, fmt.Errorf("resolving contact for user %q: %w", userID, err)
	}
	return c, nil
}
