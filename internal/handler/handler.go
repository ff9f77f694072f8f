// Package handler exposes the storefront over HTTP. Handlers translate
// requests into domain calls and map domain errors onto status codes; all
// business rules live in the domain services.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/auth"
	"github.com/canopyshop/storefront/internal/domain/cart"
	"github.com/canopyshop/storefront/internal/domain/catalog"
	"github.com/canopyshop/storefront/internal/domain/claim"
	"github.com/canopyshop/storefront/internal/domain/order"
)

// guestCookie names the cookie carrying the guest cart token.
const guestCookie = "cart_token"

// guestCookieMaxAge is 30 days in seconds.
const guestCookieMaxAge = 30 * 24 * 60 * 60

// userHeader carries the authenticated user id, set by the upstream identity
// gateway. An empty value means an anonymous caller.
const userHeader = "X-User-ID"

// Deps holds the domain dependencies the HTTP surface needs.
type Deps struct {
	Catalog catalog.Repository
	Carts   *cart.Service
	Orders  *order.Service
	Claims  *claim.Service
	APIKeys auth.Repository
	// APIKeyPepper is the HMAC key for hashing admin API keys.
	APIKeyPepper []byte
}

// Handler serves the storefront API.
type Handler struct {
	catalog catalog.Repository
	carts   *cart.Service
	orders  *order.Service
	claims  *claim.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog: deps.Catalog,
		carts:   deps.Carts,
		orders:  deps.Orders,
		claims:  deps.Claims,
	}
}

// Router builds the gin engine with all storefront routes registered.
func Router(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := NewHandler(deps)

	api := engine.Group("/api")
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)

	api.GET("/cart", h.GetCart)
	api.PUT("/cart/items", h.ReplaceCartItems)
	api.POST("/cart/merge", h.MergeCart)

	api.POST("/checkout", h.Checkout)
	api.GET("/orders/track/:code", h.TrackOrder)

	api.POST("/claims", h.FileClaim)

	admin := api.Group("/admin", RequireAPIKey(deps.APIKeys, deps.APIKeyPepper))
	admin.PUT("/orders/:id/status", h.SetOrderStatus)
	admin.PUT("/claims/:id", h.ReviewClaim)

	return engine
}

// identity derives the caller's cart identity from the user header and the
// guest cookie. A logged-in caller's user id always wins over a stale cookie.
func identity(c *gin.Context) cart.Identity {
	id := cart.Identity{UserID: c.GetHeader(userHeader)}
	if id.UserID == "" {
		if token, err := c.Cookie(guestCookie); err == nil {
			id.GuestToken = token
		}
	}
	return id
}

// setGuestCookie persists a freshly issued guest token on the client.
func setGuestCookie(c *gin.Context, token string) {
	c.SetCookie(guestCookie, token, guestCookieMaxAge, "/", "", false, true)
}
