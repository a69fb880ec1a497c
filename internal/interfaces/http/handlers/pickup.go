// internal/interfaces/http/handlers/pickup.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/pickup"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// PickupHandler handles pickup codes
type PickupHandler struct {
	pickups *pickup.Service
	orders  *order.Service
	log     logrus.FieldLogger
}

// NewPickupHandler creates a new pickup handler
func NewPickupHandler(pickups *pickup.Service, orders *order.Service, log logrus.FieldLogger) *PickupHandler {
	return &PickupHandler{pickups: pickups, orders: orders, log: log}
}

// VerifyRequest is what the depot operator types or scans
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetToken handles GET /orders/:id/pickup
func (h *PickupHandler) GetToken(c *gin.Context) {
	token, ok := h.ownToken(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, "Pickup code retrieved successfully", token)
}

// GetQRCode handles GET /orders/:id/pickup/qr
func (h *PickupHandler) GetQRCode(c *gin.Context) {
	token, ok := h.ownToken(c)
	if !ok {
		return
	}
	if err := h.pickups.CheckRedeemable(token); err != nil {
		respondError(c, h.log, err)
		return
	}
	png, err := h.pickups.QRCode(token.Code)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Verify handles POST /admin/pickup/verify
func (h *PickupHandler) Verify(c *gin.Context) {
	operatorID, _ := middleware.GetUserIDFromContext(c)
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.pickups.Verify(c.Request.Context(), req.Code, operatorID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Pickup verified successfully", result)
}

// Reissue handles POST /admin/orders/:id/pickup/reissue
func (h *PickupHandler) Reissue(c *gin.Context) {
	operatorID, _ := middleware.GetUserIDFromContext(c)
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	token, err := h.pickups.Reissue(c.Request.Context(), orderID, operatorID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Pickup code reissued successfully", token)
}

func (h *PickupHandler) ownToken(c *gin.Context) (*pickup.PickupToken, bool) {
	userID, _ := middleware.GetUserIDFromContext(c)
	orderID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	if _, err := h.orders.GetUserOrder(c.Request.Context(), userID, orderID); err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	token, err := h.pickups.GetForOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return token, true
}
