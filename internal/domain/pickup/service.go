// internal/domain/pickup/service.go
package pickup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTokenNotFound = errors.New("pickup token not found")
	ErrTokenUsed     = errors.New("pickup token already used")
	ErrTokenExpired  = errors.New("pickup token expired")
	ErrTokenRevoked  = errors.New("pickup token revoked")
)

const maxCodeAttempts = 5

// Service issues and redeems pickup tokens
type Service struct {
	db     *gorm.DB
	tx     *txn.Runner
	orders *order.Service
	config *config.Config
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new pickup service
func NewService(db *gorm.DB, orders *order.Service, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		tx:     txn.NewRunner(db, cfg.Database.TxRetries),
		orders: orders,
		config: cfg,
		log:    log.WithField("component", "pickup"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// VerifyResult is what the depot operator sees after a successful scan
type VerifyResult struct {
	Token *PickupToken `json:"token"`
	Order *order.Order `json:"order"`
}

// IssueToken satisfies order.PickupIssuer.
func (s *Service) IssueToken(tx *gorm.DB, orderID uint) error {
	_, err := s.Issue(tx, orderID)
	return err
}

// Issue returns the order's redeemable token, creating one if none exists.
func (s *Service) Issue(tx *gorm.DB, orderID uint) (*PickupToken, error) {
	now := s.now()

	var existing PickupToken
	err := tx.Where("order_id = ? AND status = ?", orderID, TokenActive).
		Order("id DESC").
		Take(&existing).Error
	switch {
	case err == nil:
		if !existing.IsExpired(now) {
			return &existing, nil
		}
		if err := revoke(tx, orderID, now); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to retrieve pickup token: %w", err)
	}

	return s.create(tx, orderID, now)
}

func (s *Service) create(tx *gorm.DB, orderID uint, now time.Time) (*PickupToken, error) {
	code, err := s.uniqueCode(tx)
	if err != nil {
		return nil, err
	}
	token := &PickupToken{
		OrderID:   orderID,
		Code:      code,
		Status:    TokenActive,
		ExpiresAt: now.Add(s.config.Pickup.TokenTTL),
	}
	if err := tx.Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to create pickup token: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": orderID, "expires_at": token.ExpiresAt}).Info("pickup token issued")
	return token, nil
}

// CloseToken satisfies order.PickupIssuer. Collection marks the live token
// used by the actor; cancellation revokes it.
func (s *Service) CloseToken(tx *gorm.DB, orderID uint, to order.Status, actor order.Actor, at time.Time) error {
	switch to {
	case order.StatusPickedUp:
		err := tx.Model(&PickupToken{}).
			Where("order_id = ? AND status = ?", orderID, TokenActive).
			Updates(map[string]interface{}{
				"status":      TokenUsed,
				"used_at":     at,
				"verified_by": actor.ID,
				"updated_at":  at,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark pickup token used: %w", err)
		}
	case order.StatusCancelled:
		if err := revoke(tx, orderID, at); err != nil {
			return err
		}
	}
	return nil
}

// Reissue replaces the order's pickup code with a fresh one. It is for
// expired or compromised codes and only applies while the order waits at
// the depot.
func (s *Service) Reissue(ctx context.Context, orderID uint, operatorID uint) (*PickupToken, error) {
	var token *PickupToken
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		var o order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("order", orderID)
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if o.Status != order.StatusWaitingForPickup {
			return apperror.Conflict("order %d is %s, not waiting for pickup", orderID, o.Status)
		}

		now := s.now()
		if err := revoke(tx, orderID, now); err != nil {
			return err
		}
		var err error
		token, err = s.create(tx, orderID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order_id": orderID, "operator_id": operatorID}).Info("pickup token reissued")
	return token, nil
}

func revoke(tx *gorm.DB, orderID uint, at time.Time) error {
	err := tx.Model(&PickupToken{}).
		Where("order_id = ? AND status = ?", orderID, TokenActive).
		Updates(map[string]interface{}{"status": TokenRevoked, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke pickup token: %w", err)
	}
	return nil
}

func (s *Service) uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&PickupToken{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check pickup code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique pickup code after %d attempts", maxCodeAttempts)
}

// GetForOrder returns the most recent token of an order
func (s *Service) GetForOrder(ctx context.Context, orderID uint) (*PickupToken, error) {
	var token PickupToken
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id DESC").Take(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to retrieve pickup token: %w", err)
	}
	return &token, nil
}

// Verify redeems a code at the depot. The token is consumed and the order
// moves to PICKED_UP in the same transaction.
func (s *Service) Verify(ctx context.Context, rawCode string, operatorID uint) (*VerifyResult, error) {
	code, ok := NormalizeCode(rawCode)
	if !ok {
		return nil, ErrTokenNotFound
	}

	var (
		token      PickupToken
		transition *order.Transition
	)
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		transition = nil
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			Take(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("failed to lock pickup token: %w", err)
		}

		now := s.now()
		if err := token.CheckRedeemable(now); err != nil {
			return err
		}

		token.Status = TokenUsed
		token.UsedAt = &now
		token.VerifiedBy = &operatorID
		if err := tx.Model(&token).Select("status", "used_at", "verified_by", "updated_at").Updates(&token).Error; err != nil {
			return fmt.Errorf("failed to mark pickup token used: %w", err)
		}

		actor := order.UserActor(operatorID, order.ActorOperator)
		var err error
		transition, err = s.orders.ApplyTransition(tx, token.OrderID, order.StatusPickedUp, actor, "collected with code "+code)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"code": code, "operator_id": operatorID}).Warn("pickup verification rejected")
		return nil, err
	}

	s.orders.Announce(ctx, transition)
	o, err := s.orders.GetOrder(ctx, token.OrderID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Token: &token, Order: o}, nil
}

// CheckRedeemable reports why token cannot be used right now, or nil.
func (s *Service) CheckRedeemable(token *PickupToken) error {
	return token.CheckRedeemable(s.now())
}

// QRCode renders code as a PNG for the customer to show at the depot.
func (s *Service) QRCode(code string) ([]byte, error) {
	size := s.config.Pickup.QRSize
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render pickup QR code: %w", err)
	}
	return png, nil
}
