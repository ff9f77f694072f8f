package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/catalog"
)

type productResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Variants    []variantResponse `json:"variants,omitempty"`
}

type variantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Discount  int64  `json:"discount,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Stock     int    `json:"stock"`
}

// ListProducts returns the whole catalog without variants.
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p, nil)
	}
	c.JSON(http.StatusOK, out)
}

// GetProduct returns one product with its variants.
func (h *Handler) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	variants, err := h.catalog.ListVariants(ctx, p.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProductResponse(*p, variants))
}

func toProductResponse(p catalog.Product, variants []catalog.Variant) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Category:    p.Category,
	}
	for _, v := range variants {
		resp.Variants = append(resp.Variants, toVariantResponse(v))
	}
	return resp
}

func toVariantResponse(v catalog.Variant) variantResponse {
	return variantResponse{
		ID:        v.ID,
		Name:      v.Name,
		Price:     v.Price,
		Discount:  v.Discount,
		UnitPrice: v.UnitPrice(),
		Stock:     v.Stock,
	}
}
