// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users  *user.Service
	carts  *cart.Service
	config *config.Config
	log    logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *user.Service, carts *cart.Service, cfg *config.Config, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, carts: carts, config: cfg, log: log}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.adoptGuestCart(c, resp.User.ID)

	respondOK(c, http.StatusCreated, "User registered successfully", resp)
}

// Login handles user login. A guest cart carried by the request is merged
// into the user's cart.
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	merge := h.adoptGuestCart(c, resp.User.ID)

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"data":       resp,
		"cart_merge": merge,
	})
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.users.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Token refreshed successfully", resp)
}

// GetProfile returns the signed-in user with addresses
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	u, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Profile retrieved successfully", u)
}

// adoptGuestCart folds the request's guest cart into userID's cart. A
// failed merge never fails the sign-in; the guest cart simply stays put.
func (h *AuthHandler) adoptGuestCart(c *gin.Context, userID uint) *cart.MergeResult {
	sessionID := guestSession(c, h.config)
	if sessionID == "" {
		return nil
	}
	result, err := h.carts.MergeSessionIntoUser(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("failed to merge guest cart")
		return nil
	}
	c.SetCookie(h.config.Cart.SessionCookie, "", -1, "/", "", h.config.IsProduction(), true)
	return result
}
