package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/order"
)

type checkoutItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type checkoutRequest struct {
	Items      []checkoutItemRequest `json:"items"`
	CouponCode string                `json:"couponCode,omitempty"`
	GuestEmail string                `json:"guestEmail,omitempty"`
	Recipient  string                `json:"recipient"`
	Phone      string                `json:"phone"`
	Address    string                `json:"address"`
	City       string                `json:"city"`
	Note       string                `json:"note,omitempty"`
}

type checkoutResponse struct {
	OrderID      string `json:"orderId"`
	Code         string `json:"code"`
	TrackingCode string `json:"trackingCode"`
	Total        int64  `json:"total"`
	Guest        bool   `json:"guest"`
}

// Checkout places an order for the submitted items.
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{VariantID: it.VariantID, Quantity: it.Quantity}
	}

	result, err := h.orders.Checkout(c.Request.Context(), order.CheckoutInput{
		Items:      items,
		CouponCode: req.CouponCode,
		UserID:     c.GetHeader(userHeader),
		GuestEmail: req.GuestEmail,
		Delivery: order.Delivery{
			Recipient: req.Recipient,
			Phone:     req.Phone,
			Address:   req.Address,
			City:      req.City,
			Note:      req.Note,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:      result.OrderID,
		Code:         result.Code,
		TrackingCode: result.TrackingCode,
		Total:        result.Total,
		Guest:        result.Guest,
	})
}
