// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// HeaderSessionID carries the guest cart session for clients without cookies
const HeaderSessionID = "X-Session-ID"

// CartHandler handles cart endpoints
type CartHandler struct {
	carts  *cart.Service
	config *config.Config
	log    logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *cart.Service, cfg *config.Config, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{carts: carts, config: cfg, log: log}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	resp, err := h.carts.GetCart(c.Request.Context(), h.owner(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart retrieved successfully", resp)
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	entry, created, err := h.carts.AddItem(c.Request.Context(), h.owner(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if created {
		respondOK(c, http.StatusCreated, "Item added to cart", entry)
		return
	}
	respondOK(c, http.StatusOK, "Cart updated", entry)
}

// UpdateItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	entry, err := h.carts.UpdateQuantity(c.Request.Context(), h.owner(c), entryID, req.Quantity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if entry == nil {
		respondOK(c, http.StatusOK, "Cart item removed successfully", nil)
		return
	}
	respondOK(c, http.StatusOK, "Cart item updated successfully", entry)
}

// RemoveItem handles DELETE /cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	entryID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(c.Request.Context(), h.owner(c), entryID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart item removed successfully", nil)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	removed, err := h.carts.Clear(c.Request.Context(), h.owner(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart cleared successfully", gin.H{"removed": removed})
}

func (h *CartHandler) owner(c *gin.Context) cart.Owner {
	return cartOwner(c, h.config)
}

// cartOwner resolves the signed-in user, or the guest session which is
// created on first use.
func cartOwner(c *gin.Context, cfg *config.Config) cart.Owner {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return cart.UserOwner(userID)
	}
	id := guestSession(c, cfg)
	if id == "" {
		id = issueGuestSession(c, cfg)
	}
	return cart.SessionOwner(id)
}

// guestSession reads the guest session from the header or the cookie.
func guestSession(c *gin.Context, cfg *config.Config) string {
	if id := validSession(c.GetHeader(HeaderSessionID)); id != "" {
		return id
	}
	if cookie, err := c.Cookie(cfg.Cart.SessionCookie); err == nil {
		return validSession(cookie)
	}
	return ""
}

func issueGuestSession(c *gin.Context, cfg *config.Config) string {
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Cart.SessionCookie, id, int(cfg.Cart.SessionMaxAge.Seconds()), "/", "", cfg.IsProduction(), true)
	c.Header(HeaderSessionID, id)
	return id
}

func validSession(raw string) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}
