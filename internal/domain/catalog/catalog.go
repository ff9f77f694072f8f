// Package catalog holds the purchasable catalog: products and their variants.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrVariantNotFound is returned when a requested variant does not exist.
var ErrVariantNotFound = errors.New("variant not found")

// ErrProductNotFound is returned when a requested product does not exist.
var ErrProductNotFound = errors.New("product not found")

// InvalidItemError indicates an item list references a variant that does not
// exist. Detected by comparing the requested set against a batch lookup.
type InvalidItemError struct {
	VariantID string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("variant %s does not exist", e.VariantID)
}

// InsufficientStockError indicates a requested quantity exceeds the variant's
// available stock. It names the offending variant so clients can adjust the
// request.
type InsufficientStockError struct {
	VariantID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): %d available, %d requested",
		e.Name, e.VariantID, e.Available, e.Requested)
}

// Product groups one or more purchasable variants.
type Product struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Category    string
}

// Variant is a purchasable SKU. Price and Discount are integer minor currency
// units; the effective unit price is Price - Discount. Stock is never negative
// and is mutated only inside the checkout transaction.
type Variant struct {
	ID        string
	ProductID string
	Name      string
	Price     int64
	Discount  int64
	Stock     int
}

// UnitPrice returns the effective per-unit price after the variant discount.
func (v Variant) UnitPrice() int64 {
	return v.Price - v.Discount
}

// Repository defines read operations for the catalog.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListVariants(ctx context.Context, productID string) ([]Variant, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
	GetVariants(ctx context.Context, ids []string) ([]Variant, error)
}
