package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/cart"
)

type cartItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

type cartLineResponse struct {
	VariantID   string `json:"variantId"`
	ProductName string `json:"productName"`
	VariantName string `json:"variantName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"lineTotal"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Subtotal int64              `json:"subtotal"`
}

// GetCart returns the caller's cart, or an empty cart if none exists yet.
func (h *Handler) GetCart(c *gin.Context) {
	result, err := h.carts.Get(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(result))
}

// ReplaceCartItems swaps the cart's entire item set. For a first-time guest a
// cart is created and its token set as a cookie.
func (h *Handler) ReplaceCartItems(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	id := identity(c)
	result, err := h.carts.ReplaceItems(c.Request.Context(), id, toItems(req.Items))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.GuestToken != "" && result.GuestToken != id.GuestToken {
		setGuestCookie(c, result.GuestToken)
	}
	c.JSON(http.StatusOK, toCartResponse(result))
}

// MergeCart accumulates the submitted items into the user's cart. Used on
// login to fold a guest cart (or a client-side cart) into the account cart.
func (h *Handler) MergeCart(c *gin.Context) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, errorBody{Code: http.StatusUnauthorized, Message: "authentication required"})
		return
	}

	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	ctx := c.Request.Context()

	// A guest cookie alongside the login means a guest cart to absorb first.
	if token, err := c.Cookie(guestCookie); err == nil && token != "" {
		if _, err := h.carts.ConvertGuestToUser(ctx, token, userID); err != nil && !isNotFound(err) {
			respondError(c, err)
			return
		}
		setGuestCookie(c, "")
	}

	result, err := h.carts.MergeInto(ctx, userID, toItems(req.Items))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(result))
}

func isNotFound(err error) bool {
	code, _ := classify(err)
	return code == http.StatusNotFound
}

func toItems(reqs []cartItemRequest) []cart.Item {
	items := make([]cart.Item, len(reqs))
	for i, r := range reqs {
		items[i] = cart.Item{VariantID: r.VariantID, Quantity: r.Quantity}
	}
	return items
}

func toCartResponse(result *cart.Cart) cartResponse {
	resp := cartResponse{
		Items:    make([]cartLineResponse, len(result.Lines)),
		Subtotal: result.Subtotal(),
	}
	for i, l := range result.Lines {
		resp.Items[i] = cartLineResponse{
			VariantID:   l.Variant.ID,
			ProductName: l.ProductName,
			VariantName: l.Variant.Name,
			UnitPrice:   l.Variant.UnitPrice(),
			Quantity:    l.Quantity,
			LineTotal:   l.Variant.UnitPrice() * int64(l.Quantity),
		}
	}
	return resp
}
