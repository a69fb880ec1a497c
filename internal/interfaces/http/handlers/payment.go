// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/payment"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// PaymentHandler handles payment initiation and gateway callbacks
type PaymentHandler struct {
	payments *payment.Service
	log      logrus.FieldLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *payment.Service, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

// Initiate handles POST /orders/:id/pay
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.Initiate(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Payment initiated successfully", p)
}

// Notify handles POST /payments/notifications
func (h *PaymentHandler) Notify(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := h.payments.HandleNotification(c.Request.Context(), &n); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// GetOrderPayments handles GET /admin/orders/:id/payments
func (h *PaymentHandler) GetOrderPayments(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	payments, err := h.payments.GetOrderPayments(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Payments retrieved successfully", payments)
}
