// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/txn"
	"gorm.io/gorm"
)

// HoldCounter reports units held by placed-but-unpaid orders.
type HoldCounter interface {
	HeldByVariant(tx *gorm.DB, variantIDs []uint) (map[uint]int, error)
}

// Service is the cart reservation engine
type Service struct {
	db     *gorm.DB
	tx     *txn.Runner
	holds  HoldCounter
	config *config.Config
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new cart service. holds may be nil when no order
// reservations exist.
func NewService(db *gorm.DB, holds HoldCounter, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		tx:     txn.NewRunner(db, cfg.Database.TxRetries),
		holds:  holds,
		config: cfg,
		log:    log.WithField("component", "cart"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AddItemRequest represents add to cart request
type AddItemRequest struct {
	VariantID  uint   `json:"variant_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	IsPreorder bool   `json:"is_preorder"`
	Note       string `json:"note" binding:"max=500"`
}

// UpdateItemRequest represents update cart item request
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// CartResponse is a cart with computed totals
type CartResponse struct {
	Owner  string      `json:"owner"`
	Items  []CartEntry `json:"items"`
	Totals CartTotals  `json:"totals"`
}

// AddItem adds quantity units of a variant to owner's cart. The variant row
// is locked for the duration, so the stock check and the write are atomic
// with respect to other AddItem calls on the same variant. created is true
// when a new entry was inserted rather than an existing one updated.
func (s *Service) AddItem(ctx context.Context, owner Owner, req *AddItemRequest) (entry *CartEntry, created bool, err error) {
	if err := owner.Validate(); err != nil {
		return nil, false, err
	}
	if req.Quantity <= 0 {
		return nil, false, apperror.Invalid("quantity", "must be a positive integer")
	}

	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		entry, created = nil, false

		variant, err := product.LockVariant(tx, req.VariantID)
		if err != nil {
			return err
		}
		if !variant.IsActive {
			return apperror.Invalid("variant_id", "variant is not available for sale")
		}

		if _, err := s.sweep(tx, SweepScope{VariantID: &variant.ID}); err != nil {
			return err
		}

		existing, err := findEntry(tx, owner, variant.ID, req.IsPreorder)
		if err != nil {
			return err
		}

		if req.IsPreorder {
			entry, created, err = s.addPreorder(tx, owner, variant, existing, req)
			return err
		}
		entry, created, err = s.addReserved(tx, owner, variant, existing, req)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	s.log.WithFields(logrus.Fields{
		"owner":      owner.String(),
		"variant_id": req.VariantID,
		"quantity":   entry.Quantity,
		"preorder":   req.IsPreorder,
		"created":    created,
	}).Debug("cart entry saved")
	return entry, created, nil
}

func (s *Service) addReserved(tx *gorm.DB, owner Owner, variant *product.ProductVariant, existing *CartEntry, req *AddItemRequest) (*CartEntry, bool, error) {
	reservedByOthers, err := s.reservedExcluding(tx, variant.ID, owner)
	if err != nil {
		return nil, false, err
	}

	currentQty := 0
	if existing != nil {
		currentQty = existing.Quantity
	}
	newTotal := currentQty + req.Quantity

	if reservedByOthers+newTotal > variant.StockOnHand {
		return nil, false, newInsufficientStock(variant.ID, variant.StockOnHand, reservedByOthers, currentQty, req.Quantity)
	}

	expiresAt := s.now().Add(s.config.Cart.ReservationTTL)

	if existing != nil {
		existing.Quantity = newTotal
		existing.ExpiresAt = &expiresAt
		existing.Note = req.Note
		if err := tx.Model(existing).Select("quantity", "expires_at", "note", "updated_at").Updates(existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update cart entry: %w", err)
		}
		return existing, false, nil
	}

	entry := &CartEntry{
		VariantID:  variant.ID,
		Quantity:   req.Quantity,
		UnitPrice:  variant.Price,
		IsPreorder: false,
		ExpiresAt:  &expiresAt,
		Note:       req.Note,
	}
	entry.setOwner(owner)
	if err := tx.Create(entry).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create cart entry: %w", err)
	}
	return entry, true, nil
}

func (s *Service) addPreorder(tx *gorm.DB, owner Owner, variant *product.ProductVariant, existing *CartEntry, req *AddItemRequest) (*CartEntry, bool, error) {
	if existing != nil {
		existing.Quantity += req.Quantity
		existing.ExpiresAt = nil
		existing.Note = req.Note
		if err := tx.Model(existing).Select("quantity", "expires_at", "note", "updated_at").Updates(existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update cart entry: %w", err)
		}
		return existing, false, nil
	}

	entry := &CartEntry{
		VariantID:     variant.ID,
		Quantity:      req.Quantity,
		UnitPrice:     variant.Price,
		OriginalPrice: decimal.NewNullDecimal(variant.Price),
		IsPreorder:    true,
		Note:          req.Note,
	}
	entry.setOwner(owner)
	if err := tx.Create(entry).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create cart entry: %w", err)
	}
	return entry, true, nil
}

// UpdateQuantity sets an absolute quantity on an entry. Zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, owner Owner, entryID uint, quantity int) (*CartEntry, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, apperror.Invalid("quantity", "must not be negative")
	}
	if quantity == 0 {
		return nil, s.RemoveItem(ctx, owner, entryID)
	}

	var entry *CartEntry
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		current, err := s.ownedEntry(tx, owner, entryID)
		if err != nil {
			return err
		}

		variant, err := product.LockVariant(tx, current.VariantID)
		if err != nil {
			return err
		}
		if _, err := s.sweep(tx, SweepScope{VariantID: &variant.ID}); err != nil {
			return err
		}
		// The sweep may just have removed it.
		if current, err = s.ownedEntry(tx, owner, entryID); err != nil {
			return err
		}

		if !current.IsPreorder {
			reservedByOthers, err := s.reservedExcluding(tx, variant.ID, owner)
			if err != nil {
				return err
			}
			if reservedByOthers+quantity > variant.StockOnHand {
				return newInsufficientStock(variant.ID, variant.StockOnHand, reservedByOthers, current.Quantity, quantity-current.Quantity)
			}
			expiresAt := s.now().Add(s.config.Cart.ReservationTTL)
			current.ExpiresAt = &expiresAt
		}

		current.Quantity = quantity
		if err := tx.Model(current).Select("quantity", "expires_at", "updated_at").Updates(current).Error; err != nil {
			return fmt.Errorf("failed to update cart entry: %w", err)
		}
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RemoveItem deletes one entry from owner's cart
func (s *Service) RemoveItem(ctx context.Context, owner Owner, entryID uint) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Scopes(owner.scope).Where("id = ?", entryID).Delete(&CartEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove cart entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("cart item", entryID)
	}
	return nil
}

// Clear empties owner's cart
func (s *Service) Clear(ctx context.Context, owner Owner) (int64, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Scopes(owner.scope).Delete(&CartEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetCart sweeps owner's stale entries and returns what is left.
func (s *Service) GetCart(ctx context.Context, owner Owner) (*CartResponse, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Sweep(ctx, SweepScope{Owner: &owner}); err != nil {
		return nil, err
	}

	var entries []CartEntry
	if err := s.db.WithContext(ctx).
		Scopes(owner.scope).
		Preload("Variant.Product").
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	return &CartResponse{
		Owner:  owner.String(),
		Items:  entries,
		Totals: calculateTotals(entries),
	}, nil
}

// ComputeTotal sums line totals across every entry owner holds. It does not
// sweep.
func (s *Service) ComputeTotal(ctx context.Context, owner Owner) (decimal.Decimal, error) {
	if err := owner.Validate(); err != nil {
		return decimal.Zero, err
	}
	var entries []CartEntry
	if err := s.db.WithContext(ctx).Scopes(owner.scope).Find(&entries).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return calculateTotals(entries).SubTotal, nil
}

// ComputeAvailableStock is stock on hand less every live reservation, floored
// at zero. It is informational only; AddItem does its own locked check.
func (s *Service) ComputeAvailableStock(ctx context.Context, variantID uint) (int, error) {
	available, err := s.AvailableStock(ctx, []uint{variantID})
	if err != nil {
		return 0, err
	}
	qty, ok := available[variantID]
	if !ok {
		return 0, apperror.NotFound("variant", variantID)
	}
	return qty, nil
}

// AvailableStock computes availability for several variants at once.
// Unknown ids are omitted from the result.
func (s *Service) AvailableStock(ctx context.Context, variantIDs []uint) (map[uint]int, error) {
	db := s.db.WithContext(ctx)

	var variants []product.ProductVariant
	if err := db.Where("id IN ?", variantIDs).Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}

	reserved, err := s.reservedByVariant(db, variantIDs, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[uint]int, len(variants))
	for _, v := range variants {
		available := v.StockOnHand - reserved[v.ID]
		if available < 0 {
			available = 0
		}
		out[v.ID] = available
	}
	return out, nil
}

// LiveEntries sweeps owner's cart inside tx and returns the surviving
// entries with variants loaded. Checkout uses it to consume the cart.
func (s *Service) LiveEntries(tx *gorm.DB, owner Owner) ([]CartEntry, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.sweep(tx, SweepScope{Owner: &owner}); err != nil {
		return nil, err
	}
	var entries []CartEntry
	if err := tx.Scopes(owner.scope).
		Preload("Variant.Product").
		Order("variant_id ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return entries, nil
}

// DeleteEntries removes consumed entries inside tx.
func (s *Service) DeleteEntries(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("id IN ?", ids).Delete(&CartEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete cart entries: %w", err)
	}
	return nil
}

// MergeResult reports how a guest cart was folded into a user cart
type MergeResult struct {
	Merged   int `json:"merged"`
	Adjusted int `json:"adjusted"`
	Dropped  int `json:"dropped"`
}

// MergeSessionIntoUser moves a guest cart onto a user after sign-in.
// Colliding lines are summed; reserved lines are trimmed to what the stock
// still allows for the user.
func (s *Service) MergeSessionIntoUser(ctx context.Context, sessionID string, userID uint) (*MergeResult, error) {
	session := SessionOwner(sessionID)
	user := UserOwner(userID)
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	result := &MergeResult{}
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		*result = MergeResult{}

		var guest []CartEntry
		if err := tx.Scopes(session.scope).Order("variant_id ASC").Find(&guest).Error; err != nil {
			return fmt.Errorf("failed to retrieve guest cart: %w", err)
		}
		if len(guest) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(guest))
		for _, e := range guest {
			ids = append(ids, e.VariantID)
		}
		variants, err := product.LockVariants(tx, uniqueSorted(ids))
		if err != nil {
			return err
		}

		now := s.now()
		for i := range guest {
			g := &guest[i]
			if err := tx.Delete(g).Error; err != nil {
				return fmt.Errorf("failed to delete guest entry: %w", err)
			}
			variant, ok := variants[g.VariantID]
			if !ok || g.shouldSweep(now, variant.StockOnHand) {
				result.Dropped++
				continue
			}

			existing, err := findEntry(tx, user, g.VariantID, g.IsPreorder)
			if err != nil {
				return err
			}

			if g.IsPreorder {
				if existing != nil {
					existing.Quantity += g.Quantity
					if err := tx.Model(existing).Update("quantity", existing.Quantity).Error; err != nil {
						return fmt.Errorf("failed to merge cart entry: %w", err)
					}
				} else if err := s.moveEntry(tx, g, user); err != nil {
					return err
				}
				result.Merged++
				continue
			}

			reservedByOthers, err := s.reservedExcluding(tx, g.VariantID, user)
			if err != nil {
				return err
			}
			userQty := 0
			if existing != nil {
				userQty = existing.Quantity
			}
			target := userQty + g.Quantity
			if allowed := variant.StockOnHand - reservedByOthers; target > allowed {
				target = allowed
				result.Adjusted++
			}
			if target <= userQty {
				if existing == nil {
					result.Dropped++
				}
				continue
			}

			expiresAt := now.Add(s.config.Cart.ReservationTTL)
			if existing != nil {
				existing.Quantity = target
				existing.ExpiresAt = &expiresAt
				if err := tx.Model(existing).Select("quantity", "expires_at", "updated_at").Updates(existing).Error; err != nil {
					return fmt.Errorf("failed to merge cart entry: %w", err)
				}
			} else {
				g.Quantity = target
				g.ExpiresAt = &expiresAt
				if err := s.moveEntry(tx, g, user); err != nil {
					return err
				}
			}
			result.Merged++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"merged":   result.Merged,
		"adjusted": result.Adjusted,
		"dropped":  result.Dropped,
	}).Info("guest cart merged")
	return result, nil
}

func (s *Service) moveEntry(tx *gorm.DB, from *CartEntry, to Owner) error {
	moved := &CartEntry{
		VariantID:     from.VariantID,
		Quantity:      from.Quantity,
		UnitPrice:     from.UnitPrice,
		OriginalPrice: from.OriginalPrice,
		IsPreorder:    from.IsPreorder,
		ExpiresAt:     from.ExpiresAt,
		Note:          from.Note,
	}
	moved.setOwner(to)
	if err := tx.Create(moved).Error; err != nil {
		return fmt.Errorf("failed to move cart entry: %w", err)
	}
	return nil
}

func (s *Service) ownedEntry(tx *gorm.DB, owner Owner, entryID uint) (*CartEntry, error) {
	var entry CartEntry
	if err := tx.Scopes(owner.scope).Where("id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("cart item", entryID)
		}
		return nil, fmt.Errorf("failed to retrieve cart entry: %w", err)
	}
	return &entry, nil
}

func findEntry(tx *gorm.DB, owner Owner, variantID uint, preorder bool) (*CartEntry, error) {
	var entry CartEntry
	err := tx.Scopes(owner.scope).
		Where("variant_id = ? AND is_preorder = ?", variantID, preorder).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve cart entry: %w", err)
	}
	return &entry, nil
}

// reservedExcluding is everything holding units of variantID except owner's
// own non-preorder line.
func (s *Service) reservedExcluding(tx *gorm.DB, variantID uint, owner Owner) (int, error) {
	reserved, err := s.reservedByVariant(tx, []uint{variantID}, &owner)
	if err != nil {
		return 0, err
	}
	return reserved[variantID], nil
}

// reservedByVariant sums live non-preorder cart quantities plus live order
// holds per variant, optionally ignoring one owner's entries.
func (s *Service) reservedByVariant(tx *gorm.DB, variantIDs []uint, exclude *Owner) (map[uint]int, error) {
	out := make(map[uint]int, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	query := tx.Where("variant_id IN ? AND is_preorder = ?", variantIDs, false)
	if exclude != nil {
		query = query.Where("NOT (owner_kind = ? AND owner_id = ?)", exclude.kind, exclude.id)
	}
	var entries []CartEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	now := s.now()
	for i := range entries {
		if !entries[i].IsExpired(now) {
			out[entries[i].VariantID] += entries[i].Quantity
		}
	}

	if s.holds != nil {
		held, err := s.holds.HeldByVariant(tx, variantIDs)
		if err != nil {
			return nil, err
		}
		for id, qty := range held {
			out[id] += qty
		}
	}
	return out, nil
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
