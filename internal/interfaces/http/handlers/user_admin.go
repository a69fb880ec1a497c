package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
)

// UserAdminHandler handles admin user management
type UserAdminHandler struct {
	users *user.Service
	log   logrus.FieldLogger
}

// NewUserAdminHandler creates a new admin user handler
func NewUserAdminHandler(users *user.Service, log logrus.FieldLogger) *UserAdminHandler {
	return &UserAdminHandler{users: users, log: log}
}

// ListUsers handles GET /admin/users
func (h *UserAdminHandler) ListUsers(c *gin.Context) {
	var req user.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.users.ListUsers(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Users retrieved successfully", resp)
}

// CreateStaff handles POST /admin/users
func (h *UserAdminHandler) CreateStaff(c *gin.Context) {
	adminID, _ := middleware.GetUserIDFromContext(c)
	var req user.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	u, err := h.users.CreateStaff(c.Request.Context(), &req, adminID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, "Staff account created successfully", u)
}

// UpdateUserStatus handles PUT /admin/users/:id/status
func (h *UserAdminHandler) UpdateUserStatus(c *gin.Context) {
	adminID, _ := middleware.GetUserIDFromContext(c)
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req user.UserStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.users.UpdateUserStatus(c.Request.Context(), userID, &req, adminID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "User status updated successfully", gin.H{"id": userID, "is_active": req.IsActive})
}
