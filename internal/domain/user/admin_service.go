// internal/domain/user/admin_service.go
package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/pagination"
)

// UserListRequest represents user list query parameters
type UserListRequest struct {
	Page     int    `form:"page,default=1"`
	Limit    int    `form:"limit,default=20"`
	Search   string `form:"search"`
	Role     Role   `form:"role"`
	IsActive *bool  `form:"is_active"`
}

// UserListResponse represents paginated user list response
type UserListResponse struct {
	Users      []User                `json:"users"`
	Pagination pagination.Pagination `json:"pagination"`
}

// CreateStaffRequest creates an admin or operator account
type CreateStaffRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Role     Role   `json:"role" binding:"required"`
}

// UserStatusUpdateRequest represents user status update request
type UserStatusUpdateRequest struct {
	IsActive bool `json:"is_active"`
}

// ListUsers retrieves users with filtering and pagination
func (s *Service) ListUsers(ctx context.Context, req *UserListRequest) (*UserListResponse, error) {
	query := s.db.WithContext(ctx).Model(&User{})
	if req.Search != "" {
		term := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", term, term)
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var users []User
	if err := query.
		Order("created_at DESC, id DESC").
		Scopes(pagination.Scope(req.Page, req.Limit)).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	return &UserListResponse{
		Users:      users,
		Pagination: pagination.New(req.Page, req.Limit, total),
	}, nil
}

// CreateStaff creates an admin or operator account
func (s *Service) CreateStaff(ctx context.Context, req *CreateStaffRequest, adminID uint) (*User, error) {
	if req.Role != RoleAdmin && req.Role != RoleOperator {
		return nil, apperror.Invalid("role", "must be admin or operator")
	}
	u, err := s.create(ctx, req.Email, req.Password, req.FullName, "", req.Role)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role, "admin_id": adminID}).Info("staff account created")
	return u, nil
}

// UpdateUserStatus activates or deactivates a user. Admins cannot lock
// themselves out.
func (s *Service) UpdateUserStatus(ctx context.Context, userID uint, req *UserStatusUpdateRequest, adminID uint) error {
	if userID == adminID && !req.IsActive {
		return apperror.Invalid("is_active", "you cannot deactivate your own account")
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("is_active", req.IsActive)
	if result.Error != nil {
		return fmt.Errorf("failed to update user status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "is_active": req.IsActive, "admin_id": adminID}).Info("user status updated")
	return nil
}
