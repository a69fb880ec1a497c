// internal/domain/cart/sweep.go
package cart

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"gorm.io/gorm"
)

const sweepBatchSize = 500

// SweepScope narrows a sweep. The zero value covers the whole table and is
// meant for the janitor only.
type SweepScope struct {
	Owner     *Owner
	VariantID *uint
}

// IsAll reports whether the scope is unrestricted.
func (sc SweepScope) IsAll() bool {
	return sc.Owner == nil && sc.VariantID == nil
}

// Sweep deletes entries within scope whose reservation expired or whose
// quantity now exceeds the variant's stock on hand. It returns the number of
// entries removed.
func (s *Service) Sweep(ctx context.Context, scope SweepScope) (int64, error) {
	var removed int64
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		n, err := s.sweep(tx, scope)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Service) sweep(tx *gorm.DB, scope SweepScope) (int64, error) {
	query := tx.Model(&CartEntry{})
	if scope.Owner != nil {
		query = query.Scopes(scope.Owner.scope)
	}
	if scope.VariantID != nil {
		query = query.Where("variant_id = ?", *scope.VariantID)
	}

	now := s.now()
	var doomed []uint
	var batch []CartEntry
	result := query.FindInBatches(&batch, sweepBatchSize, func(_ *gorm.DB, _ int) error {
		stock, err := stockFor(tx, batch)
		if err != nil {
			return err
		}
		for i := range batch {
			onHand, ok := stock[batch[i].VariantID]
			if !ok || batch[i].shouldSweep(now, onHand) {
				doomed = append(doomed, batch[i].ID)
			}
		}
		return nil
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to scan cart entries: %w", result.Error)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	var removed int64
	for start := 0; start < len(doomed); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(doomed) {
			end = len(doomed)
		}
		res := tx.Where("id IN ?", doomed[start:end]).Delete(&CartEntry{})
		if res.Error != nil {
			return 0, fmt.Errorf("failed to delete stale cart entries: %w", res.Error)
		}
		removed += res.RowsAffected
	}

	entry := s.log.WithField("removed", removed)
	if scope.Owner != nil {
		entry = entry.WithField("owner", scope.Owner.String())
	}
	if scope.VariantID != nil {
		entry = entry.WithField("variant_id", *scope.VariantID)
	}
	if scope.IsAll() {
		entry.WithFields(logrus.Fields{"scope": "all"}).Info("cart sweep completed")
	} else {
		entry.Debug("cart sweep completed")
	}
	return removed, nil
}

func stockFor(tx *gorm.DB, entries []CartEntry) (map[uint]int, error) {
	ids := make([]uint, 0, len(entries))
	for i := range entries {
		ids = append(ids, entries[i].VariantID)
	}

	var variants []product.ProductVariant
	if err := tx.Select("id", "stock_on_hand").Where("id IN ?", uniqueSorted(ids)).Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to load variant stock: %w", err)
	}

	out := make(map[uint]int, len(variants))
	for _, v := range variants {
		out[v.ID] = v.StockOnHand
	}
	return out, nil
}
