package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// AddressHandler handles the signed-in user's saved addresses
type AddressHandler struct {
	users *user.Service
	log   logrus.FieldLogger
}

// NewAddressHandler creates a new address handler
func NewAddressHandler(users *user.Service, log logrus.FieldLogger) *AddressHandler {
	return &AddressHandler{users: users, log: log}
}

// ListAddresses handles GET /users/addresses
func (h *AddressHandler) ListAddresses(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	addresses, err := h.users.ListAddresses(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Addresses retrieved successfully", addresses)
}

// CreateAddress handles POST /users/addresses
func (h *AddressHandler) CreateAddress(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	var req user.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	address, err := h.users.CreateAddress(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Address created successfully", address)
}
