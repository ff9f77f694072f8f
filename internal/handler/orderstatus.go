package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/order"
)

type trackingResponse struct {
	Code        string          `json:"code"`
	Status      string          `json:"status"`
	Total       int64           `json:"total"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	History     []historyEntry  `json:"history"`
	Items       []trackItemView `json:"items"`
}

type historyEntry struct {
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type trackItemView struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// TrackOrder resolves an order by its tracking code for unauthenticated
// tracking pages. The response deliberately omits delivery address and
// contact details.
func (h *Handler) TrackOrder(c *gin.Context) {
	ctx := c.Request.Context()

	o, err := h.orders.GetByTrackingCode(ctx, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := h.orders.History(ctx, o.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := trackingResponse{
		Code:        o.Code,
		Status:      string(o.Status),
		Total:       o.Total,
		DeliveredAt: o.DeliveredAt,
		CreatedAt:   o.CreatedAt,
		History:     make([]historyEntry, len(history)),
		Items:       make([]trackItemView, len(o.Items)),
	}
	for i, e := range history {
		resp.History[i] = historyEntry{
			Status:    string(e.Status),
			Note:      e.Note,
			Location:  e.Location,
			CreatedAt: e.CreatedAt,
		}
	}
	for i, it := range o.Items {
		resp.Items[i] = trackItemView{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	c.JSON(http.StatusOK, resp)
}

type setStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Note     string `json:"note,omitempty"`
	Location string `json:"location,omitempty"`
}

type orderStatusResponse struct {
	OrderID     string     `json:"orderId"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// SetOrderStatus applies an admin status transition to an order.
func (h *Handler) SetOrderStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	o, err := h.orders.SetStatus(c.Request.Context(), order.SetStatusInput{
		OrderID:  c.Param("id"),
		Status:   order.Status(req.Status),
		Note:     req.Note,
		Location: req.Location,
		Actor:    apiKeyName(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderStatusResponse{
		OrderID:     o.ID,
		Code:        o.Code,
		Status:      string(o.Status),
		DeliveredAt: o.DeliveredAt,
	})
}
