package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/claim"
)

type fileClaimRequest struct {
	OrderCode string `json:"orderCode" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

type claimResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileClaim submits a guarantee claim against a delivered order.
func (h *Handler) FileClaim(c *gin.Context) {
	var req fileClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	result, err := h.claims.File(c.Request.Context(), claim.FileInput{
		OrderCode:    req.OrderCode,
		Reason:       req.Reason,
		CallerUserID: c.GetHeader(userHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClaimResponse(result))
}

type reviewClaimRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReviewClaim sets a claim's review status.
func (h *Handler) ReviewClaim(c *gin.Context) {
	var req reviewClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	result, err := h.claims.Review(c.Request.Context(), c.Param("id"), claim.Status(req.Status), apiKeyName(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClaimResponse(result))
}

func toClaimResponse(result *claim.Claim) claimResponse {
	return claimResponse{
		ID:        result.ID,
		OrderID:   result.OrderID,
		Reason:    result.Reason,
		Status:    string(result.Status),
		CreatedAt: result.CreatedAt,
		UpdatedAt: result.UpdatedAt,
	}
}
