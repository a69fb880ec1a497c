// internal/domain/checkout/entity.go
package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryZone is an area the retailer delivers to, with its flat fee.
type DeliveryZone struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	Code      string              `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name      string              `gorm:"not null;size:100" json:"name"`
	Fee       decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"fee"`
	FreeAbove decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"free_above"`
	IsActive  bool                `gorm:"not null" json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// TableName overrides the table name
func (DeliveryZone) TableName() string { return "delivery_zones" }

// FeeFor returns the delivery fee for an order subtotal.
func (z *DeliveryZone) FeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if z.FreeAbove.Valid && subtotal.GreaterThanOrEqual(z.FreeAbove.Decimal) {
		return decimal.Zero
	}
	return z.Fee
}
