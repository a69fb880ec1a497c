// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
)

// ErrStockUnavailable is returned when an order hold cannot be turned into a
// sale because the physical stock is gone.
var ErrStockUnavailable = errors.New("stock no longer available for reservation")

// Service handles stock levels, movements and order holds
type Service struct {
	db     *gorm.DB
	tx     *txn.Runner
	config *config.Config
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		tx:     txn.NewRunner(db, cfg.Database.TxRetries),
		config: cfg,
		log:    log.WithField("component", "inventory"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AdjustStockRequest describes a manual stock change
type AdjustStockRequest struct {
	Delta  int            `json:"delta" binding:"required"`
	Reason MovementReason `json:"reason" binding:"required"`
	Notes  string         `json:"notes"`
}

// ReservationRequest describes an order hold created at checkout
type ReservationRequest struct {
	VariantID   uint
	OrderID     uint
	OrderItemID uint
	Quantity    int
	ExpiresAt   time.Time
}

// AdjustStock applies a signed delta to a variant's stock on hand and records
// the movement.
func (s *Service) AdjustStock(ctx context.Context, variantID uint, req *AdjustStockRequest, actor *uint) (*StockMovement, error) {
	if req.Delta == 0 {
		return nil, apperror.Invalid("delta", "must not be zero")
	}
	switch req.Reason {
	case ReasonRestock, ReasonReturn, ReasonDamage, ReasonAdjustment:
	default:
		return nil, apperror.Invalid("reason", "must be one of restock, return, damage, adjustment")
	}

	var movement *StockMovement
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		variant, err := product.LockVariant(tx, variantID)
		if err != nil {
			return err
		}
		if variant.StockOnHand+req.Delta < 0 {
			return apperror.Invalid("delta", fmt.Sprintf("would make stock negative (on hand %d)", variant.StockOnHand))
		}

		movement, err = s.applyMovement(tx, variant, req.Delta, req.Reason, "manual", 0, req.Notes, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"variant_id": variantID,
		"delta":      req.Delta,
		"reason":     req.Reason,
		"new_qty":    movement.NewQuantity,
	}).Info("stock adjusted")
	return movement, nil
}

// GetMovements lists the most recent movements for a variant
func (s *Service) GetMovements(ctx context.Context, variantID uint, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var movements []StockMovement
	if err := s.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve movements: %w", err)
	}
	return movements, nil
}

// Reserve creates an order hold inside the caller's transaction. The caller
// must already hold the variant lock.
func (s *Service) Reserve(tx *gorm.DB, req *ReservationRequest) (*StockReservation, error) {
	if req.Quantity <= 0 {
		return nil, apperror.Invalid("quantity", "must be positive")
	}
	reservation := &StockReservation{
		VariantID:   req.VariantID,
		OrderID:     req.OrderID,
		OrderItemID: req.OrderItemID,
		Quantity:    req.Quantity,
		Status:      ReservationActive,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := tx.Create(reservation).Error; err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return reservation, nil
}

// HeldQuantity sums live order holds for a variant as seen by tx.
func (s *Service) HeldQuantity(tx *gorm.DB, variantID uint) (int, error) {
	held, err := s.HeldByVariant(tx, []uint{variantID})
	if err != nil {
		return 0, err
	}
	return held[variantID], nil
}

// HeldByVariant sums live order holds for each of the given variants.
func (s *Service) HeldByVariant(tx *gorm.DB, variantIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	var reservations []StockReservation
	if err := tx.Where("variant_id IN ? AND status = ?", variantIDs, ReservationActive).
		Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	now := s.now()
	for _, r := range reservations {
		if r.IsLive(now) {
			out[r.VariantID] += r.Quantity
		}
	}
	return out, nil
}

// FulfillOrder turns every active hold of an order into a sale, decrementing
// stock on hand. Holds that lapsed but were not yet expired by the janitor
// are honoured while stock allows.
func (s *Service) FulfillOrder(tx *gorm.DB, orderID uint, actor *uint) error {
	reservations, err := s.orderReservations(tx, orderID, ReservationActive, ReservationExpired)
	if err != nil {
		return err
	}

	for i := range reservations {
		r := &reservations[i]
		variant, err := product.LockVariant(tx, r.VariantID)
		if err != nil {
			return err
		}
		if variant.StockOnHand < r.Quantity {
			return fmt.Errorf("variant %d for order %d: %w", r.VariantID, orderID, ErrStockUnavailable)
		}
		if _, err := s.applyMovement(tx, variant, -r.Quantity, ReasonSale, "order", orderID, "", actor); err != nil {
			return err
		}
		if err := tx.Model(r).Update("status", ReservationFulfilled).Error; err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
	}
	return nil
}

// ReleaseOrder drops the holds of a cancelled order. Holds that were already
// fulfilled are returned to stock.
func (s *Service) ReleaseOrder(tx *gorm.DB, orderID uint, actor *uint) error {
	reservations, err := s.orderReservations(tx, orderID, ReservationActive, ReservationExpired, ReservationFulfilled)
	if err != nil {
		return err
	}

	for i := range reservations {
		r := &reservations[i]
		next := ReservationReleased
		if r.Status == ReservationFulfilled {
			variant, err := product.LockVariant(tx, r.VariantID)
			if err != nil {
				return err
			}
			if _, err := s.applyMovement(tx, variant, r.Quantity, ReasonReturn, "order", orderID, "order cancelled", actor); err != nil {
				return err
			}
			next = ReservationReturned
		}
		if err := tx.Model(r).Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
	}
	return nil
}

// ExpireReservations marks lapsed active holds as expired and returns how
// many were changed.
func (s *Service) ExpireReservations(ctx context.Context) (int64, error) {
	var active []StockReservation
	if err := s.db.WithContext(ctx).Where("status = ?", ReservationActive).Find(&active).Error; err != nil {
		return 0, fmt.Errorf("failed to load reservations: %w", err)
	}

	now := s.now()
	var ids []uint
	for _, r := range active {
		if !r.IsLive(now) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Model(&StockReservation{}).
		Where("id IN ? AND status = ?", ids, ReservationActive).
		Update("status", ReservationExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetOrderReservations lists all holds recorded for an order
func (s *Service) GetOrderReservations(ctx context.Context, orderID uint) ([]StockReservation, error) {
	return s.orderReservations(s.db.WithContext(ctx), orderID)
}

func (s *Service) orderReservations(tx *gorm.DB, orderID uint, statuses ...ReservationStatus) ([]StockReservation, error) {
	query := tx.Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var reservations []StockReservation
	if err := query.Order("variant_id ASC, id ASC").Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	return reservations, nil
}

func (s *Service) applyMovement(tx *gorm.DB, variant *product.ProductVariant, delta int, reason MovementReason, refType string, refID uint, notes string, actor *uint) (*StockMovement, error) {
	movementType := MovementTypeInbound
	quantity := delta
	if delta < 0 {
		movementType = MovementTypeOutbound
		quantity = -delta
	}

	movement := &StockMovement{
		VariantID:        variant.ID,
		MovementType:     movementType,
		Reason:           reason,
		Quantity:         quantity,
		PreviousQuantity: variant.StockOnHand,
		NewQuantity:      variant.StockOnHand + delta,
		ReferenceType:    refType,
		ReferenceID:      refID,
		Notes:            notes,
		CreatedBy:        actor,
	}

	if err := tx.Model(&product.ProductVariant{}).
		Where("id = ?", variant.ID).
		Update("stock_on_hand", movement.NewQuantity).Error; err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}
	if err := tx.Create(movement).Error; err != nil {
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	variant.StockOnHand = movement.NewQuantity
	return movement, nil
}
