// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// InventoryHandler handles stock endpoints for staff
type InventoryHandler struct {
	inventory *inventory.Service
	products  *product.Service
	log       logrus.FieldLogger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inv *inventory.Service, products *product.Service, log logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{inventory: inv, products: products, log: log}
}

// AdjustStock handles POST /admin/inventory/variants/:id/adjust
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req inventory.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	var actor *uint
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		actor = &userID
	}
	movement, err := h.inventory.AdjustStock(c.Request.Context(), variantID, &req, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Stock adjusted successfully", movement)
}

// GetMovements handles GET /admin/inventory/variants/:id/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	movements, err := h.inventory.GetMovements(c.Request.Context(), variantID, queryInt(c, "limit", 50, 200))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Stock movements retrieved successfully", movements)
}

// GetLowStock handles GET /admin/inventory/low-stock
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	variants, err := h.products.LowStockVariants(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Low stock variants retrieved successfully", variants)
}

// GetOrderReservations handles GET /admin/orders/:id/reservations
func (h *InventoryHandler) GetOrderReservations(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	holds, err := h.inventory.GetOrderReservations(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Reservations retrieved successfully", holds)
}
