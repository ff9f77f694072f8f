package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/domain/catalog"
	"github.com/canopyshop/storefront/internal/domain/coupon"
	"github.com/canopyshop/storefront/internal/domain/order"
	"github.com/canopyshop/storefront/internal/outbox"
)

const (
	// The stock guard re-validates availability at commit time: the UPDATE
	// matches zero rows when another transaction drained the stock after the
	// service's read, and the whole checkout rolls back.
	decrementStockSQL = `UPDATE variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	variantStockSQL = `SELECT name, stock FROM variants WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders
		(id, code, tracking_code, status, user_id, guest_email,
		 recipient, phone, address, city, note, total, coupon_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, variant_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, status, note, location)
		VALUES ($1, $2, $3, $4)`

	// Matches zero rows when the coupon hit its usage cap between validation
	// and commit, failing the checkout instead of overspending the coupon.
	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE
		AND (max_uses IS NULL OR uses < max_uses)`

	getOrderByIDSQL = `SELECT id, code, tracking_code, status, user_id, guest_email,
		recipient, phone, address, city, note, total, coupon_code, delivered_at, created_at
		FROM orders WHERE id = $1`

	getOrderByCodeSQL = `SELECT id, code, tracking_code, status, user_id, guest_email,
		recipient, phone, address, city, note, total, coupon_code, delivered_at, created_at
		FROM orders WHERE code = $1`

	getOrderByTrackingSQL = `SELECT id, code, tracking_code, status, user_id, guest_email,
		recipient, phone, address, city, note, total, coupon_code, delivered_at, created_at
		FROM orders WHERE tracking_code = $1`

	getOrderItemsSQL = `SELECT oi.variant_id, v.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN variants v ON v.id = oi.variant_id
		WHERE oi.order_id = $1
		ORDER BY oi.variant_id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2,
		delivered_at = CASE WHEN $3 THEN now() ELSE delivered_at END
		WHERE id = $1`

	getHistorySQL = `SELECT status, note, COALESCE(location, ''), created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order as a single transaction: stock decrements with
// commit-time re-validation, the order row, its items, the initial history
// entry, the guarded coupon-uses increment, and the outbox intents. Any
// failure rolls the whole checkout back.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, intents []outbox.Intent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin checkout: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range o.Items {
		if err := decrementStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Code, o.TrackingCode, string(o.Status),
		nullable(o.UserID), nullable(o.GuestEmail),
		o.Delivery.Recipient, o.Delivery.Phone, o.Delivery.Address,
		o.Delivery.City, o.Delivery.Note,
		o.Total, nullable(o.CouponCode),
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL, o.ID, item.VariantID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("inserting order item %q: %w", item.VariantID, err)
		}
	}

	_, err = tx.Exec(ctx, insertHistorySQL, o.ID, string(o.Status), o.Status.DefaultNote(), nil)
	if err != nil {
		return fmt.Errorf("inserting initial history for order %q: %w", o.ID, err)
	}

	if o.CouponCode != "" {
		cmd, err := tx.Exec(ctx, incrementCouponUsesSQL, o.CouponCode)
		if err != nil {
			return fmt.Errorf("incrementing coupon uses %q: %w", o.CouponCode, err)
		}
		if cmd.RowsAffected() == 0 {
			return coupon.ErrExhausted
		}
	}

	if err := insertIntents(ctx, tx, intents); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func decrementStock(ctx context.Context, tx pgx.Tx, variantID string, quantity int) error {
	cmd, err := tx.Exec(ctx, decrementStockSQL, variantID, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", variantID, err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the variant vanished or stock dropped below the
	// requested quantity. Look it up to produce a precise error.
	var (
		name  string
		stock int
	)
	err = tx.QueryRow(ctx, variantStockSQL, variantID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &catalog.InvalidItemError{VariantID: variantID}
		}
		return fmt.Errorf("looking up variant %q after failed decrement: %w", variantID, err)
	}
	return &catalog.InsufficientStockError{
		VariantID: variantID,
		Name:      name,
		Available: stock,
		Requested: quantity,
	}
}

// GetByID returns the order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByCode returns the order with the given public code.
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByCodeSQL, code)
}

// GetByTrackingCode returns the order with the given tracking code.
func (r *OrderRepository) GetByTrackingCode(ctx context.Context, code string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByTrackingSQL, code)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	items, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", o.ID, err)
	}
	o.Items, err = pgx.CollectRows(items, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.VariantID, &it.Name, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", o.ID, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		status     string
		userID     *string
		guestEmail *string
		couponCode *string
	)
	err := row.Scan(
		&o.ID, &o.Code, &o.TrackingCode, &status, &userID, &guestEmail,
		&o.Delivery.Recipient, &o.Delivery.Phone, &o.Delivery.Address,
		&o.Delivery.City, &o.Delivery.Note,
		&o.Total, &couponCode, &o.DeliveredAt, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	if userID != nil {
		o.UserID = *userID
	}
	if guestEmail != nil {
		o.GuestEmail = *guestEmail
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	return o, err
}

// ApplyStatus updates the order status, appends the history entry and
// inserts the outbox intents as one transaction.
func (r *OrderRepository) ApplyStatus(ctx context.Context, orderID string, change order.StatusChange, intents []outbox.Intent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, updateOrderStatusSQL, orderID, string(change.Status), change.StampDelivered)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", orderID, err)
	}
	if cmd.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	_, err = tx.Exec(ctx, insertHistorySQL, orderID, string(change.Status), change.Note, nullable(change.Location))
	if err != nil {
		return fmt.Errorf("appending history for order %q: %w", orderID, err)
	}

	if err := insertIntents(ctx, tx, intents); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// History returns the order's status history oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]order.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, getHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting history for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.HistoryEntry, error) {
		var (
			e      order.HistoryEntry
			status string
		)
		err := row.Scan(&status, &e.Note, &e.Location, &e.CreatedAt)
		e.Status = order.Status(status)
		return e, err
	})
}
