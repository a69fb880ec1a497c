// internal/domain/user/address_service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"gorm.io/gorm"
)

const maxAddressesPerUser = 10

// CreateAddressRequest represents address creation data
type CreateAddressRequest struct {
	Label         string `json:"label" binding:"max=50"`
	RecipientName string `json:"recipient_name" binding:"required,max=100"`
	Phone         string `json:"phone" binding:"required,max=20"`
	AddressLine   string `json:"address_line" binding:"required,max=255"`
	City          string `json:"city" binding:"required,max=100"`
	PostalCode    string `json:"postal_code" binding:"max=20"`
	Landmark      string `json:"landmark" binding:"max=255"`
	IsDefault     bool   `json:"is_default"`
}

// ListAddresses returns a user's addresses, default first
func (s *Service) ListAddresses(ctx context.Context, userID uint) ([]Address, error) {
	var addresses []Address
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC, id DESC").
		Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	return addresses, nil
}

// GetAddress retrieves an address only if it belongs to userID
func (s *Service) GetAddress(ctx context.Context, userID, addressID uint) (*Address, error) {
	var address Address
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("address", addressID)
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &address, nil
}

// CreateAddress saves a new address. The first address, or one flagged
// default, becomes the only default.
func (s *Service) CreateAddress(ctx context.Context, userID uint, req *CreateAddressRequest) (*Address, error) {
	address := &Address{
		UserID:        userID,
		Label:         strings.TrimSpace(req.Label),
		RecipientName: strings.TrimSpace(req.RecipientName),
		Phone:         strings.TrimSpace(req.Phone),
		AddressLine:   strings.TrimSpace(req.AddressLine),
		City:          strings.TrimSpace(req.City),
		PostalCode:    strings.TrimSpace(req.PostalCode),
		Landmark:      strings.TrimSpace(req.Landmark),
		IsDefault:     req.IsDefault,
	}
	if address.RecipientName == "" || address.AddressLine == "" || address.City == "" {
		return nil, apperror.Invalid("address", "recipient name, address line and city are required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Address{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}
		if count >= maxAddressesPerUser {
			return apperror.Invalid("address", fmt.Sprintf("at most %d addresses can be saved", maxAddressesPerUser))
		}
		if count == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := tx.Model(&Address{}).
				Where("user_id = ? AND is_default = ?", userID, true).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("failed to unset default address: %w", err)
			}
		}
		if err := tx.Create(address).Error; err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}
