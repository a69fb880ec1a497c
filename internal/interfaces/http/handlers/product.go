// internal/interfaces/http/handlers/product.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/product"
)

// ProductHandler handles catalog endpoints
type ProductHandler struct {
	products *product.Service
	carts    *cart.Service
	log      logrus.FieldLogger
}

// NewProductHandler creates a new product handler
func NewProductHandler(products *product.Service, carts *cart.Service, log logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{products: products, carts: carts, log: log}
}

// VariantView is a variant with the quantity still open for new carts
type VariantView struct {
	product.ProductVariant
	Available int `json:"available"`
}

// ProductView is a product whose variants carry availability
type ProductView struct {
	product.Product
	Variants []VariantView `json:"variants"`
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	var req product.ProductListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	active := true
	req.IsActive = &active

	resp, err := h.products.GetProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	views, err := h.withAvailability(c, resp.Products)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products":   views,
		"pagination": resp.Pagination,
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondProduct(c, p)
}

// GetProductBySlug handles GET /products/slug/:slug
func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	p, err := h.products.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondProduct(c, p)
}

// GetVariantAvailability handles GET /products/variants/:id/availability
func (h *ProductHandler) GetVariantAvailability(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	available, err := h.carts.ComputeAvailableStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Availability retrieved successfully", gin.H{
		"variant_id": id,
		"available":  available,
	})
}

// GetCategories handles GET /categories
func (h *ProductHandler) GetCategories(c *gin.Context) {
	categories, err := h.products.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Categories retrieved successfully", categories)
}

// AdminCreateProduct handles POST /admin/products
func (h *ProductHandler) AdminCreateProduct(c *gin.Context) {
	var req product.ProductCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	p, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Product created successfully", p)
}

// AdminAddVariant handles POST /admin/products/:id/variants
func (h *ProductHandler) AdminAddVariant(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req product.VariantCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	v, err := h.products.AddVariant(c.Request.Context(), productID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Variant created successfully", v)
}

// AdminUpdateVariant handles PATCH /admin/variants/:id
func (h *ProductHandler) AdminUpdateVariant(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req product.VariantUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	v, err := h.products.UpdateVariant(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Variant updated successfully", v)
}

func (h *ProductHandler) respondProduct(c *gin.Context, p *product.Product) {
	views, err := h.withAvailability(c, []product.Product{*p})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Product retrieved successfully", views[0])
}

func (h *ProductHandler) withAvailability(c *gin.Context, products []product.Product) ([]ProductView, error) {
	var ids []uint
	for _, p := range products {
		for _, v := range p.Variants {
			ids = append(ids, v.ID)
		}
	}
	available := map[uint]int{}
	if len(ids) > 0 {
		var err error
		if available, err = h.carts.AvailableStock(c.Request.Context(), ids); err != nil {
			return nil, err
		}
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		view := ProductView{Product: p, Variants: make([]VariantView, 0, len(p.Variants))}
		for _, v := range p.Variants {
			view.Variants = append(view.Variants, VariantView{ProductVariant: v, Available: available[v.ID]})
		}
		view.Product.Variants = nil
		views = append(views, view)
	}
	return views, nil
}
