// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/lpg-storefront/internal/domain/product"
)

// CartEntry is one (owner, variant, preorder) line awaiting checkout. A
// non-preorder entry doubles as a stock reservation until ExpiresAt.
type CartEntry struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	OwnerKind     OwnerKind           `gorm:"not null;size:10;uniqueIndex:idx_cart_entries_tuple,priority:1" json:"owner_kind"`
	OwnerID       string              `gorm:"not null;size:64;uniqueIndex:idx_cart_entries_tuple,priority:2" json:"-"`
	VariantID     uint                `gorm:"not null;index;uniqueIndex:idx_cart_entries_tuple,priority:3" json:"variant_id"`
	IsPreorder    bool                `gorm:"not null;uniqueIndex:idx_cart_entries_tuple,priority:4" json:"is_preorder"`
	Quantity      int                 `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	OriginalPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"original_price"`
	ExpiresAt     *time.Time          `gorm:"index" json:"expires_at"`
	Note          string              `gorm:"size:500" json:"note"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`

	Variant *product.ProductVariant `gorm:"foreignKey:VariantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"variant,omitempty"`
}

// TableName overrides the table name
func (CartEntry) TableName() string {
	return "cart_entries"
}

// Owner rebuilds the tagged owner from the stored columns.
func (e *CartEntry) Owner() Owner {
	return ownerFromColumns(e.OwnerKind, e.OwnerID)
}

func (e *CartEntry) setOwner(o Owner) {
	e.OwnerKind = o.kind
	e.OwnerID = o.id
}

// IsExpired reports whether the reservation window has closed. Entries
// without an expiry never expire.
func (e *CartEntry) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// EffectivePrice is the per-unit price used for totals. Preorders are billed
// at their original price when one was recorded.
func (e *CartEntry) EffectivePrice() decimal.Decimal {
	if e.IsPreorder && e.OriginalPrice.Valid {
		return e.OriginalPrice.Decimal
	}
	return e.UnitPrice
}

// LineTotal is quantity times the effective price.
func (e *CartEntry) LineTotal() decimal.Decimal {
	return e.EffectivePrice().Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// shouldSweep is the reconciliation predicate: expired, or holding more
// than the variant physically has. Preorders are exempt from the stock test.
func (e *CartEntry) shouldSweep(now time.Time, stockOnHand int) bool {
	if e.IsExpired(now) {
		return true
	}
	return !e.IsPreorder && e.Quantity > stockOnHand
}

// CartTotals represents calculated cart totals
type CartTotals struct {
	ItemCount     int             `json:"item_count"`
	TotalQuantity int             `json:"total_quantity"`
	PreorderCount int             `json:"preorder_count"`
	SubTotal      decimal.Decimal `json:"sub_total"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

func calculateTotals(entries []CartEntry) CartTotals {
	totals := CartTotals{SubTotal: decimal.Zero}
	for i := range entries {
		e := &entries[i]
		totals.ItemCount++
		totals.TotalQuantity += e.Quantity
		totals.SubTotal = totals.SubTotal.Add(e.LineTotal())
		if e.IsPreorder {
			totals.PreorderCount++
		}
		if e.ExpiresAt != nil && (totals.ExpiresAt == nil || e.ExpiresAt.Before(*totals.ExpiresAt)) {
			t := *e.ExpiresAt
			totals.ExpiresAt = &t
		}
	}
	return totals
}
