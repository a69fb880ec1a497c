// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/auth"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service handles user business logic
type Service struct {
	db              *gorm.DB
	config          *config.Config
	passwordManager *auth.PasswordManager
	jwtManager      *auth.JWTManager
	log             logrus.FieldLogger
	now             func() time.Time
}

// NewService creates a new user service
func NewService(db *gorm.DB, jwt *auth.JWTManager, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		passwordManager: auth.NewPasswordManager(cfg),
		jwtManager:      jwt,
		log:             log.WithField("component", "user"),
		now:             time.Now,
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FullName        string `json:"full_name" binding:"required"`
	Phone           string `json:"phone"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register creates a customer account and signs it in
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperror.Invalid("confirm_password", "passwords do not match")
	}
	u, err := s.create(ctx, req.Email, req.Password, req.FullName, req.Phone, RoleCustomer)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Login authenticates a user
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(req.Email)), true).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if err := s.passwordManager.VerifyPassword(req.Password, u.Password); err != nil {
		s.log.WithField("user_id", u.ID).Info("failed login")
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, &u)
}

// RefreshToken generates a new access token from a refresh token. The
// refresh token itself is kept.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	access, err := s.jwtManager.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.AccessTokenExpiry.Seconds()),
	}, nil
}

// GetProfile retrieves a user with saved addresses
func (s *Service) GetProfile(ctx context.Context, userID uint) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Preload("Addresses", func(db *gorm.DB) *gorm.DB { return db.Order("is_default DESC, id ASC") }).
		First(&u, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return &u, nil
}

// EnsureUser creates the account when the email is not taken yet. Seeding
// uses it for the first admin.
func (s *Service) EnsureUser(ctx context.Context, email, password, fullName string, role Role) (*User, error) {
	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return s.create(ctx, email, password, fullName, "", role)
}

func (s *Service) create(ctx context.Context, email, password, fullName, phone string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, apperror.Invalid("role", "must be customer, admin or operator")
	}
	hashed, err := s.passwordManager.HashPassword(password)
	if err != nil {
		return nil, apperror.Invalid("password", err.Error())
	}

	u := &User{
		Email:    email,
		Password: hashed,
		FullName: strings.TrimSpace(fullName),
		Phone:    phone,
		Role:     role,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if txn.IsUniqueViolation(err) {
			return nil, apperror.Conflict("user with email %s already exists", u.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user created")
	return u, nil
}

func (s *Service) issue(ctx context.Context, u *User) (*AuthResponse, error) {
	access, err := s.jwtManager.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(u).UpdateColumn("last_login_at", now).Error; err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("failed to record last login")
	}

	return &AuthResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.JWT.AccessTokenExpiry.Seconds()),
	}, nil
}

func (s *Service) activeUser(ctx context.Context, id uint) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return &u, nil
}
