// internal/domain/product/lock.go
package product

import (
	"errors"
	"fmt"

	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockVariant loads a variant with SELECT ... FOR UPDATE. Every code path
// that reads stock and then writes a reservation against it must go through
// here first, inside the same transaction, so concurrent writers serialize
// on the variant row.
func LockVariant(tx *gorm.DB, id uint) (*ProductVariant, error) {
	var variant ProductVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&variant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("variant", id)
		}
		return nil, fmt.Errorf("failed to lock variant: %w", err)
	}
	return &variant, nil
}

// LockVariants locks several variants in ascending id order so two
// transactions touching the same set cannot deadlock each other. Ids that do
// not exist are absent from the result.
func LockVariants(tx *gorm.DB, ids []uint) (map[uint]*ProductVariant, error) {
	var variants []ProductVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock variants: %w", err)
	}

	out := make(map[uint]*ProductVariant, len(variants))
	for i := range variants {
		out[variants[i].ID] = &variants[i]
	}
	return out, nil
}
