package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyshop/storefront/internal/audit"
	"github.com/canopyshop/storefront/internal/domain/auth"
	"github.com/canopyshop/storefront/internal/domain/cart"
	"github.com/canopyshop/storefront/internal/domain/catalog"
	"github.com/canopyshop/storefront/internal/domain/claim"
	"github.com/canopyshop/storefront/internal/domain/coupon"
	"github.com/canopyshop/storefront/internal/domain/order"
	"github.com/canopyshop/storefront/internal/notify"
	"github.com/canopyshop/storefront/internal/outbox"
)

// --- Mock implementations ---

type mockCatalog struct {
	products map[string]catalog.Product
	variants map[string]catalog.Variant
}

func (m *mockCatalog) ListProducts(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockCatalog) ListVariants(_ context.Context, productID string) ([]catalog.Variant, error) {
	var out []catalog.Variant
	for _, v := range m.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, catalog.ErrVariantNotFound
	}
	return &v, nil
}

func (m *mockCatalog) GetVariants(_ context.Context, ids []string) ([]catalog.Variant, error) {
	var out []catalog.Variant
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	byID       map[string]*order.Order
	byTracking map[string]*order.Order
	history    map[string][]order.HistoryEntry
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order, _ []outbox.Intent) error {
	if m.byID == nil {
		m.byID = make(map[string]*order.Order)
	}
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByCode(_ context.Context, code string) (*order.Order, error) {
	for _, o := range m.byID {
		if o.Code == code {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) GetByTrackingCode(_ context.Context, code string) (*order.Order, error) {
	o, ok := m.byTracking[code]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ApplyStatus(_ context.Context, orderID string, change order.StatusChange, _ []outbox.Intent) error {
	o, ok := m.byID[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = change.Status
	return nil
}

func (m *mockOrderRepo) History(_ context.Context, orderID string) ([]order.HistoryEntry, error) {
	return m.history[orderID], nil
}

type noValidator struct{}

func (noValidator) Validate(_ context.Context, _ string, _ int64) (*coupon.Discount, error) {
	return nil, coupon.ErrNotFound
}

type emptyDirectory struct{}

func (emptyDirectory) Contact(_ context.Context, _ string) (notify.Contact, error) {
	return notify.Contact{}, notify.ErrUnknownUser
}

type mockAPIKeys struct {
	hash string
	name string
}

func (m *mockAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if hash != m.hash {
		return nil, auth.ErrKeyNotFound
	}
	return &auth.APIKeyInfo{ID: "k1", KeyHash: m.hash, Name: m.name}, nil
}

type mockCartRepo struct {
	recs  map[string]*cart.Record
	items map[string][]cart.Item
	cat   *mockCatalog
}

func newMockCartRepo(cat *mockCatalog) *mockCartRepo {
	return &mockCartRepo{
		recs:  make(map[string]*cart.Record),
		items: make(map[string][]cart.Item),
		cat:   cat,
	}
}

func (m *mockCartRepo) GetByUser(_ context.Context, userID string) (*cart.Record, error) {
	for _, r := range m.recs {
		if r.UserID == userID && userID != "" {
			return r, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (m *mockCartRepo) GetByToken(_ context.Context, token string) (*cart.Record, error) {
	for _, r := range m.recs {
		if r.GuestToken == token && token != "" {
			return r, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (m *mockCartRepo) Create(_ context.Context, rec cart.Record) error {
	m.recs[rec.ID] = &rec
	return nil
}

func (m *mockCartRepo) ReplaceItems(_ context.Context, cartID string, items []cart.Item) error {
	m.items[cartID] = append([]cart.Item(nil), items...)
	return nil
}

func (m *mockCartRepo) MergeItems(_ context.Context, cartID string, items []cart.Item) error {
	existing := m.items[cartID]
	for _, item := range items {
		merged := false
		for i := range existing {
			if existing[i].VariantID == item.VariantID {
				existing[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			existing = append(existing, item)
		}
	}
	m.items[cartID] = existing
	return nil
}

func (m *mockCartRepo) ResolveLines(_ context.Context, cartID string) ([]cart.Line, error) {
	var lines []cart.Line
	for _, item := range m.items[cartID] {
		v := m.cat.variants[item.VariantID]
		lines = append(lines, cart.Line{
			Variant:     v,
			ProductName: m.cat.products[v.ProductID].Name,
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}

func (m *mockCartRepo) AssignUser(_ context.Context, cartID, userID string) error {
	rec, ok := m.recs[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	rec.UserID, rec.GuestToken = userID, ""
	return nil
}

func (m *mockCartRepo) AssignGuestToken(_ context.Context, cartID, token string) error {
	rec, ok := m.recs[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	rec.UserID, rec.GuestToken = "", token
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, cartID string) error {
	delete(m.recs, cartID)
	delete(m.items, cartID)
	return nil
}

type mockClaimRepo struct {
	byID map[string]*claim.Claim
}

func (m *mockClaimRepo) Create(_ context.Context, c *claim.Claim) error {
	if m.byID == nil {
		m.byID = make(map[string]*claim.Claim)
	}
	m.byID[c.ID] = c
	return nil
}

func (m *mockClaimRepo) GetByID(_ context.Context, id string) (*claim.Claim, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, claim.ErrNotFound
	}
	return c, nil
}

func (m *mockClaimRepo) HasOpen(_ context.Context, orderID string) (bool, error) {
	for _, c := range m.byID {
		if c.OrderID == orderID && !c.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClaimRepo) SetStatus(_ context.Context, id string, status claim.Status) error {
	c, ok := m.byID[id]
	if !ok {
		return claim.ErrNotFound
	}
	c.Status = status
	return nil
}

type auditRecorder struct{}

func (auditRecorder) Record(_ context.Context, _ audit.Event) error { return nil }

// --- Test fixtures ---

const testPepper = "test-pepper"

func keyHash(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func testDeps(t *testing.T) (Deps, *mockOrderRepo, *mockClaimRepo) {
	t.Helper()

	cat := &mockCatalog{
		products: map[string]catalog.Product{
			"p1": {ID: "p1", Name: "Espresso Beans", Slug: "espresso-beans"},
		},
		variants: map[string]catalog.Variant{
			"v1": {ID: "v1", ProductID: "p1", Name: "250g", Price: 1200, Stock: 10},
			"v2": {ID: "v2", ProductID: "p1", Name: "1kg", Price: 4000, Discount: 400, Stock: 1},
		},
	}
	orderRepo := &mockOrderRepo{
		byID:       make(map[string]*order.Order),
		byTracking: make(map[string]*order.Order),
		history:    make(map[string][]order.HistoryEntry),
	}
	claimRepo := &mockClaimRepo{byID: make(map[string]*claim.Claim)}

	orderSvc := order.NewService(cat, noValidator{}, orderRepo, emptyDirectory{})
	cartSvc := cart.NewService(newMockCartRepo(cat), cat)
	claimSvc := claim.NewService(claimRepo, orderRepo, auditRecorder{})

	return Deps{
		Catalog:      cat,
		Carts:        cartSvc,
		Orders:       orderSvc,
		Claims:       claimSvc,
		APIKeys:      &mockAPIKeys{hash: keyHash("admin-key"), name: "ops"},
		APIKeyPepper: []byte(testPepper),
	}, orderRepo, claimRepo
}

func doJSON(t *testing.T, engine http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestGetProduct_IncludesVariants(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodGet, "/api/products/p1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Espresso Beans", resp.Name)
	assert.Len(t, resp.Variants, 2)
}

func TestGetProduct_NotFound(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodGet, "/api/products/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplaceCartItems_IssuesGuestCookie(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodPut, "/api/cart/items", cartRequest{
		Items: []cartItemRequest{{VariantID: "v1", Quantity: 2}},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == guestCookie {
			token = c.Value
		}
	}
	require.NotEmpty(t, token, "expected a guest cart cookie")

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.EqualValues(t, 2400, resp.Subtotal)

	// The cookie resolves the same cart on the next request.
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: guestCookie, Value: token})
	next := httptest.NewRecorder()
	engine.ServeHTTP(next, req)
	require.Equal(t, http.StatusOK, next.Code)

	var again cartResponse
	require.NoError(t, json.Unmarshal(next.Body.Bytes(), &again))
	assert.Len(t, again.Items, 1)
}

func TestReplaceCartItems_InsufficientStock(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodPut, "/api/cart/items", cartRequest{
		Items: []cartItemRequest{{VariantID: "v2", Quantity: 5}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "v2")
}

func TestMergeCart_RequiresUser(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodPost, "/api/cart/merge", cartRequest{
		Items: []cartItemRequest{{VariantID: "v1", Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMergeCart_AccumulatesForUser(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)
	hdr := map[string]string{userHeader: "u1"}

	for range 2 {
		rec := doJSON(t, engine, http.MethodPost, "/api/cart/merge", cartRequest{
			Items: []cartItemRequest{{VariantID: "v1", Quantity: 2}},
		}, hdr)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, engine, http.MethodGet, "/api/cart", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 4, resp.Items[0].Quantity)
}

func TestCheckout_PlacesOrder(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodPost, "/api/checkout", checkoutRequest{
		Items:      []checkoutItemRequest{{VariantID: "v1", Quantity: 2}},
		GuestEmail: "guest@example.com",
		Recipient:  "A. Customer",
		Address:    "1 Main St",
		City:       "Tirana",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2400, resp.Total)
	assert.Len(t, resp.Code, 8)
	assert.Len(t, resp.TrackingCode, 12)
	assert.True(t, resp.Guest)
}

func TestCheckout_EmptyItems(t *testing.T) {
	deps, _, _ := testDeps(t)
	engine := Router(deps)

	rec := doJSON(t, engine, http.MethodPost, "/api/checkout", checkoutRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackOrder(t *testing.T) {
	deps, orderRepo, _ := testDeps(t)
	engine := Router(deps)

	o := &order.Order{
		ID:           "o1",
		Code:         "ABCD2345",
		TrackingCode: "TRACK2345678",
		Status:       order.StatusConfirmed,
		Total:        2400,
		Items:        []order.Item{{VariantID: "v1", Name: "250g", Quantity: 2, UnitPrice: 1200}},
	}
	orderRepo.byID[o.ID] = o
	orderRepo.byTracking[o.TrackingCode] = o
	orderRepo.history[o.ID] = []order.HistoryEntry{
		{Status: order.StatusPendingConfirmation, Note: "Order placed, awaiting confirmation"},
		{Status: order.StatusConfirmed, Note: "Order confirmed"},
	}

	rec := doJSON(t, engine, http.MethodGet, "/api/orders/track/TRACK2345678", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp trackingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ABCD2345", resp.Code)
	assert.Equal(t, string(order.StatusConfirmed), resp.Status)
	assert.Len(t, resp.History, 2)

	missing := doJSON(t, engine, http.MethodGet, "/api/orders/track/NOPE", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAdminRoutes_RequireAPIKey(t *testing.T) {
	deps, orderRepo, _ := testDeps(t)
	engine := Router(deps)

	o := &order.Order{ID: "o1", Code: "ABCD2345", Status: order.StatusPendingConfirmation}
	orderRepo.byID[o.ID] = o

	body := setStatusRequest{Status: string(order.StatusConfirmed)}

	rec := doJSON(t, engine, http.MethodPut, "/api/admin/orders/o1/status", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/admin/orders/o1/status", body,
		map[string]string{apiKeyHeader: "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/admin/orders/o1/status", body,
		map[string]string{apiKeyHeader: "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(order.StatusConfirmed), resp.Status)
}

func TestSetOrderStatus_UnknownStatus(t *testing.T) {
	deps, orderRepo, _ := testDeps(t)
	engine := Router(deps)
	orderRepo.byID["o1"] = &order.Order{ID: "o1", Status: order.StatusConfirmed}

	rec := doJSON(t, engine, http.MethodPut, "/api/admin/orders/o1/status",
		setStatusRequest{Status: "SHIPPED"},
		map[string]string{apiKeyHeader: "admin-key"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileClaim_MapsDomainErrors(t *testing.T) {
	deps, orderRepo, _ := testDeps(t)
	engine := Router(deps)

	orderRepo.byID["o1"] = &order.Order{ID: "o1", Code: "DLVD2345", Status: order.StatusDelivered}
	orderRepo.byID["o2"] = &order.Order{ID: "o2", Code: "PEND2345", Status: order.StatusPendingConfirmation}

	// Not yet delivered.
	rec := doJSON(t, engine, http.MethodPost, "/api/claims",
		fileClaimRequest{OrderCode: "PEND2345", Reason: "damaged"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// First claim goes through.
	rec = doJSON(t, engine, http.MethodPost, "/api/claims",
		fileClaimRequest{OrderCode: "DLVD2345", Reason: "damaged"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(claim.StatusSubmitted), resp.Status)

	// Second claim while the first is open.
	rec = doJSON(t, engine, http.MethodPost, "/api/claims",
		fileClaimRequest{OrderCode: "DLVD2345", Reason: "still damaged"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewClaim(t *testing.T) {
	deps, orderRepo, claimRepo := testDeps(t)
	engine := Router(deps)

	orderRepo.byID["o1"] = &order.Order{ID: "o1", Code: "DLVD2345", Status: order.StatusDelivered}
	claimRepo.byID["c1"] = &claim.Claim{ID: "c1", OrderID: "o1", Status: claim.StatusSubmitted}

	rec := doJSON(t, engine, http.MethodPut, "/api/admin/claims/c1",
		reviewClaimRequest{Status: string(claim.StatusApproved)},
		map[string]string{apiKeyHeader: "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(claim.StatusApproved), resp.Status)

	missing := doJSON(t, engine, http.MethodPut, "/api/admin/claims/nope",
		reviewClaimRequest{Status: string(claim.StatusApproved)},
		map[string]string{apiKeyHeader: "admin-key"})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
