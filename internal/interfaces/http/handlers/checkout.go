// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/checkout"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// CheckoutHandler handles quoting and placing orders
type CheckoutHandler struct {
	checkout *checkout.Service
	users    *user.Service
	config   *config.Config
	log      logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(co *checkout.Service, users *user.Service, cfg *config.Config, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{checkout: co, users: users, config: cfg, log: log}
}

// CheckoutRequest places an order. A saved address can stand in for an
// inline shipping address.
type CheckoutRequest struct {
	Method          order.FulfillmentMethod `json:"fulfillment_method" binding:"required"`
	ZoneCode        string                  `json:"zone_code"`
	AddressID       uint                    `json:"address_id"`
	ShippingAddress *order.Address          `json:"shipping_address"`
	Notes           string                  `json:"notes" binding:"max=1000"`
}

// Quote handles GET /checkout/quote
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req checkout.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	quote, err := h.checkout.Quote(c.Request.Context(), cartOwner(c, h.config), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Quote calculated successfully", quote)
}

// Checkout handles POST /checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	address := req.ShippingAddress
	if req.AddressID != 0 {
		saved, err := h.users.GetAddress(c.Request.Context(), userID, req.AddressID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		a := saved.ToOrderAddress()
		address = &a
	}

	placed, err := h.checkout.Checkout(c.Request.Context(), userID, &checkout.Request{
		Method:          req.Method,
		ZoneCode:        req.ZoneCode,
		ShippingAddress: address,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Order placed successfully", placed)
}

// ListZones handles GET /delivery-zones
func (h *CheckoutHandler) ListZones(c *gin.Context) {
	activeOnly := !middleware.IsAdminFromContext(c) || c.Query("all") != "true"
	zones, err := h.checkout.ListZones(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Delivery zones retrieved successfully", zones)
}

// SaveZone handles PUT /admin/delivery-zones
func (h *CheckoutHandler) SaveZone(c *gin.Context) {
	var req checkout.ZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	zone, err := h.checkout.SaveZone(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Delivery zone saved successfully", zone)
}
