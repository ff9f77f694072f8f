package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/domain/cart"
)

const (
	getCartByUserSQL  = `SELECT id, user_id, guest_token FROM carts WHERE user_id = $1`
	getCartByTokenSQL = `SELECT id, user_id, guest_token FROM carts WHERE guest_token = $1`

	createCartSQL = `INSERT INTO carts (id, user_id, guest_token) VALUES ($1, $2, $3)`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`
	insertCartItemSQL  = `INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES ($1, $2, $3)`

	// The upsert serializes concurrent merges on the (cart_id, variant_id)
	// primary key: two racing merges for the same variant both land on the
	// same row and accumulate instead of duplicating lines.
	mergeCartItemSQL = `INSERT INTO cart_items (cart_id, variant_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	resolveLinesSQL = `SELECT v.id, v.product_id, v.name, v.price, v.discount, v.stock, p.name, ci.quantity
		FROM cart_items ci
		JOIN variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY v.id`

	assignUserSQL       = `UPDATE carts SET user_id = $2, guest_token = NULL WHERE id = $1`
	assignGuestTokenSQL = `UPDATE carts SET user_id = NULL, guest_token = $2 WHERE id = $1`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByUser returns the user's cart record.
func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*cart.Record, error) {
	return r.getOne(ctx, getCartByUserSQL, userID)
}

// GetByToken returns the guest cart record for the given token.
func (r *CartRepository) GetByToken(ctx context.Context, token string) (*cart.Record, error) {
	return r.getOne(ctx, getCartByTokenSQL, token)
}

func (r *CartRepository) getOne(ctx context.Context, sql, arg string) (*cart.Record, error) {
	var (
		rec        cart.Record
		userID     *string
		guestToken *string
	)
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&rec.ID, &userID, &guestToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart: %w", err)
	}
	if userID != nil {
		rec.UserID = *userID
	}
	if guestToken != nil {
		rec.GuestToken = *guestToken
	}
	return &rec, nil
}

// Create inserts a new cart row.
func (r *CartRepository) Create(ctx context.Context, rec cart.Record) error {
	_, err := r.pool.Exec(ctx, createCartSQL, rec.ID, nullable(rec.UserID), nullable(rec.GuestToken))
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", rec.ID, err)
	}
	return nil
}

// ReplaceItems atomically swaps the cart's entire item set.
func (r *CartRepository) ReplaceItems(ctx context.Context, cartID string, items []cart.Item) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace items: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteCartItemsSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	for _, item := range items {
		if _, err := tx.Exec(ctx, insertCartItemSQL, cartID, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("inserting item %q: %w", item.VariantID, err)
		}
	}

	return tx.Commit(ctx)
}

// MergeItems accumulates items into the cart as one atomic unit.
func (r *CartRepository) MergeItems(ctx context.Context, cartID string, items []cart.Item) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin merge items: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		if _, err := tx.Exec(ctx, mergeCartItemSQL, cartID, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("merging item %q: %w", item.VariantID, err)
		}
	}

	return tx.Commit(ctx)
}

// ResolveLines returns the cart's items joined with variant and product data.
func (r *CartRepository) ResolveLines(ctx context.Context, cartID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, resolveLinesSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("resolving cart %q: %w", cartID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(
			&l.Variant.ID, &l.Variant.ProductID, &l.Variant.Name,
			&l.Variant.Price, &l.Variant.Discount, &l.Variant.Stock,
			&l.ProductName, &l.Quantity,
		)
		return l, err
	})
}

// AssignUser reassigns the cart to a user, clearing the guest token.
func (r *CartRepository) AssignUser(ctx context.Context, cartID, userID string) error {
	return r.assign(ctx, assignUserSQL, cartID, userID)
}

// AssignGuestToken detaches the cart from its user under a fresh guest token.
func (r *CartRepository) AssignGuestToken(ctx context.Context, cartID, token string) error {
	return r.assign(ctx, assignGuestTokenSQL, cartID, token)
}

func (r *CartRepository) assign(ctx context.Context, sql, cartID, owner string) error {
	cmd, err := r.pool.Exec(ctx, sql, cartID, owner)
	if err != nil {
		return fmt.Errorf("reassigning cart %q: %w", cartID, err)
	}
	if cmd.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// Delete removes a cart and, via cascade, its items.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, cartID); err != nil {
		return fmt.Errorf("deleting cart %q: %w", cartID, err)
	}
	return nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
