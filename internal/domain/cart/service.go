package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/canopyshop/storefront/internal/domain/catalog"
)

// ErrInvalidQuantity is returned when a submitted item has a quantity below 1.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Service encapsulates cart business logic on top of the cart and catalog
// repositories.
type Service struct {
	carts   Repository
	catalog catalog.Repository
}

// NewService creates a cart Service with the required repositories.
func NewService(carts Repository, cat catalog.Repository) *Service {
	return &Service{carts: carts, catalog: cat}
}

// Get returns the cart for the given identity with lines resolved against the
// catalog. When no cart exists it returns an empty cart; it never mutates.
func (s *Service) Get(ctx context.Context, id Identity) (*Cart, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Cart{UserID: id.UserID, GuestToken: id.GuestToken}, nil
		}
		return nil, err
	}
	return s.resolve(ctx, rec)
}

// ReplaceItems validates every submitted item against the catalog, then
// atomically replaces the cart's entire item set. For a guest identity with
// no existing cart, a new cart is created and a fresh token is issued; the
// returned cart carries it for the caller to persist client-side.
func (s *Service) ReplaceItems(ctx context.Context, id Identity, items []Item) (*Cart, error) {
	items, err := collapse(items)
	if err != nil {
		return nil, err
	}
	if err := s.validateStock(ctx, items); err != nil {
		return nil, err
	}

	rec, err := s.find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		rec, err = s.create(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.carts.ReplaceItems(ctx, rec.ID, items); err != nil {
		return nil, errors.Wrap(err, "replace items")
	}
	return s.resolve(ctx, rec)
}

// MergeInto accumulates the given items into the user's cart: quantities of
// already-present variants are incremented, new variants are inserted. The
// repository runs the merge as one atomic unit, so submitting the same merge
// twice yields summed quantities rather than duplicate lines.
func (s *Service) MergeInto(ctx context.Context, userID string, items []Item) (*Cart, error) {
	items, err := collapse(items)
	if err != nil {
		return nil, err
	}
	if err := s.validateExists(ctx, items); err != nil {
		return nil, err
	}

	rec, err := s.carts.GetByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		rec, err = s.create(ctx, Identity{UserID: userID})
	}
	if err != nil {
		return nil, err
	}

	if err := s.carts.MergeItems(ctx, rec.ID, items); err != nil {
		return nil, errors.Wrap(err, "merge items")
	}
	return s.resolve(ctx, rec)
}

// ConvertGuestToUser binds the guest cart identified by token to the user.
// When the user has no cart, ownership is reassigned in place so the item
// history survives login. When the user already has a cart, the guest lines
// are merged into it and the emptied guest cart is removed.
func (s *Service) ConvertGuestToUser(ctx context.Context, token, userID string) (*Cart, error) {
	guest, err := s.carts.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.GetByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		if err := s.carts.AssignUser(ctx, guest.ID, userID); err != nil {
			return nil, errors.Wrap(err, "assign user")
		}
		guest.UserID, guest.GuestToken = userID, ""
		return s.resolve(ctx, guest)
	}
	if err != nil {
		return nil, err
	}

	lines, err := s.carts.ResolveLines(ctx, guest.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve guest lines")
	}
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{VariantID: l.Variant.ID, Quantity: l.Quantity}
	}
	if len(items) > 0 {
		if err := s.carts.MergeItems(ctx, existing.ID, items); err != nil {
			return nil, errors.Wrap(err, "merge guest items")
		}
	}
	if err := s.carts.Delete(ctx, guest.ID); err != nil {
		return nil, errors.Wrap(err, "remove guest cart")
	}
	return s.resolve(ctx, existing)
}

// ConvertUserToGuest detaches the user's cart on logout, issuing a fresh
// guest token so the items remain reachable from the same browser session.
// The new token is on the returned cart.
func (s *Service) ConvertUserToGuest(ctx context.Context, userID string) (*Cart, error) {
	rec, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if err := s.carts.AssignGuestToken(ctx, rec.ID, token); err != nil {
		return nil, errors.Wrap(err, "assign guest token")
	}
	rec.UserID, rec.GuestToken = "", token
	return s.resolve(ctx, rec)
}

func (s *Service) find(ctx context.Context, id Identity) (*Record, error) {
	if id.IsGuest() {
		if id.GuestToken == "" {
			return nil, ErrNotFound
		}
		return s.carts.GetByToken(ctx, id.GuestToken)
	}
	return s.carts.GetByUser(ctx, id.UserID)
}

func (s *Service) create(ctx context.Context, id Identity) (*Record, error) {
	rec := Record{ID: uuid.NewString(), UserID: id.UserID}
	if id.IsGuest() {
		rec.GuestToken = uuid.NewString()
	}
	if err := s.carts.Create(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return &rec, nil
}

func (s *Service) resolve(ctx context.Context, rec *Record) (*Cart, error) {
	lines, err := s.carts.ResolveLines(ctx, rec.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve lines")
	}
	return &Cart{
		ID:         rec.ID,
		UserID:     rec.UserID,
		GuestToken: rec.GuestToken,
		Lines:      lines,
	}, nil
}

// validateStock checks that every item references an existing variant with
// enough stock. Nothing is mutated on failure.
func (s *Service) validateStock(ctx context.Context, items []Item) error {
	variants, err := s.lookup(ctx, items)
	if err != nil {
		return err
	}
	for _, item := range items {
		v := variants[item.VariantID]
		if v.Stock < item.Quantity {
			return &catalog.InsufficientStockError{
				VariantID: v.ID,
				Name:      v.Name,
				Available: v.Stock,
				Requested: item.Quantity,
			}
		}
	}
	return nil
}

// validateExists checks variant existence only; merge targets accumulate
// quantities without a stock gate, checkout re-validates stock anyway.
func (s *Service) validateExists(ctx context.Context, items []Item) error {
	_, err := s.lookup(ctx, items)
	return err
}

func (s *Service) lookup(ctx context.Context, items []Item) (map[string]catalog.Variant, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.VariantID
	}
	fetched, err := s.catalog.GetVariants(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}

	byID := make(map[string]catalog.Variant, len(fetched))
	for _, v := range fetched {
		byID[v.ID] = v
	}
	for _, item := range items {
		if _, ok := byID[item.VariantID]; !ok {
			return nil, &catalog.InvalidItemError{VariantID: item.VariantID}
		}
	}
	return byID, nil
}

// collapse validates quantities and merges duplicate variant references by
// summing, preserving first-seen order.
func collapse(items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[item.VariantID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(out)
		out = append(out, item)
	}
	return out, nil
}
