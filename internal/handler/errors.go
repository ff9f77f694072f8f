package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/canopyshop/storefront/internal/domain/cart"
	"github.com/canopyshop/storefront/internal/domain/catalog"
	"github.com/canopyshop/storefront/internal/domain/claim"
	"github.com/canopyshop/storefront/internal/domain/coupon"
	"github.com/canopyshop/storefront/internal/domain/order"
)

// errorBody is the uniform error payload.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondError maps a domain error onto an HTTP status and writes the error
// payload. Unrecognized errors become an opaque 500; the cause is logged, not
// leaked.
func respondError(c *gin.Context, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Code: status, Message: message})
}

func classify(err error) (int, string) {
	var (
		stockErr *catalog.InsufficientStockError
		itemErr  *catalog.InvalidItemError
	)
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, claim.ErrUnknownStatus):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, claim.ErrForbidden):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, claim.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, claim.ErrDuplicate),
		errors.Is(err, claim.ErrNotEligible),
		errors.Is(err, coupon.ErrExhausted):
		return http.StatusConflict, err.Error()

	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity, stockErr.Error()

	case errors.As(err, &itemErr):
		return http.StatusUnprocessableEntity, itemErr.Error()
	}
	return http.StatusInternalServerError, ""
}
