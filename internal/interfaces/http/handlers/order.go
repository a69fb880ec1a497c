// internal/interfaces/http/handlers/order.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// OrderHandler handles order endpoints for customers and staff
type OrderHandler struct {
	orders *order.Service
	log    logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *order.Service, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

// StatusUpdateRequest moves an order along its lifecycle
type StatusUpdateRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment" binding:"max=500"`
}

// CancelRequest carries an optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// GetUserOrders handles GET /orders
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	var req order.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.UserID = userID

	resp, err := h.orders.ListOrders(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Orders retrieved successfully", resp)
}

// GetUserOrder handles GET /orders/:id
func (h *OrderHandler) GetUserOrder(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetUserOrder(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order retrieved successfully", gin.H{
		"order":              o,
		"available_statuses": order.AvailableNextStatuses(o.Status, o.FulfillmentMethod),
	})
}

// GetUserOrderStatus handles GET /orders/:id/status
func (h *OrderHandler) GetUserOrderStatus(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.orders.GetUserOrder(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondStatus(c, id)
}

// GetUserOrderHistory handles GET /orders/:id/history
func (h *OrderHandler) GetUserOrderHistory(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.orders.GetUserOrder(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondHistory(c, id)
}

// CancelUserOrder handles POST /orders/:id/cancel
func (h *OrderHandler) CancelUserOrder(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	h.cancel(c, order.UserActor(userID, order.ActorCustomer))
}

// ListOrders handles GET /admin/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req order.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	resp, err := h.orders.ListOrders(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Orders retrieved successfully", resp)
}

// GetOrder handles GET /admin/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order retrieved successfully", gin.H{
		"order":              o,
		"available_statuses": order.AvailableNextStatuses(o.Status, o.FulfillmentMethod),
	})
}

// GetOrderHistory handles GET /admin/orders/:id/history
func (h *OrderHandler) GetOrderHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondHistory(c, id)
}

// UpdateStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), id, target, staffActor(c), req.Comment)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order status updated successfully", gin.H{
		"order":              o,
		"available_statuses": order.AvailableNextStatuses(o.Status, o.FulfillmentMethod),
	})
}

// CancelOrder handles POST /admin/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.cancel(c, staffActor(c))
}

func (h *OrderHandler) cancel(c *gin.Context, actor order.Actor) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	o, err := h.orders.Cancel(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order cancelled successfully", o)
}

func (h *OrderHandler) respondStatus(c *gin.Context, id uint) {
	snap, err := h.orders.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order status retrieved successfully", snap)
}

func (h *OrderHandler) respondHistory(c *gin.Context, id uint) {
	history, err := h.orders.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Order history retrieved successfully", history)
}

// staffActor maps the signed-in back-office user onto an order actor.
func staffActor(c *gin.Context) order.Actor {
	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	switch role {
	case "admin":
		return order.UserActor(userID, order.ActorAdmin)
	case "operator":
		return order.UserActor(userID, order.ActorOperator)
	default:
		return order.UserActor(userID, order.ActorCustomer)
	}
}
