// internal/domain/product/entity.go
package product

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a kind of LPG product, e.g. a refill of a given brand.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	Brand       string         `gorm:"size:100" json:"brand"`
	CategoryID  uint           `gorm:"not null;index" json:"category_id"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Category Category         `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"variants,omitempty"`
}

// Category groups products (refills, new cylinders, accessories)
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"size:500" json:"description"`
	SortOrder   int            `gorm:"default:0" json:"sort_order"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductVariant is a purchasable SKU, typically one cylinder size.
// StockOnHand is the physical count; reservations are tracked elsewhere.
type ProductVariant struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ProductID         uint            `gorm:"not null;index" json:"product_id"`
	SKU               string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name              string          `gorm:"not null;size:255" json:"name"`
	SizeKg            decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"size_kg"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockOnHand       int             `gorm:"not null;default:0" json:"stock_on_hand"`
	LowStockThreshold int             `gorm:"default:5" json:"low_stock_threshold"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName overrides
func (Product) TableName() string        { return "products" }
func (Category) TableName() string       { return "categories" }
func (ProductVariant) TableName() string { return "product_variants" }

// IsLowStock reports whether the physical count is at or below the threshold.
func (v *ProductVariant) IsLowStock() bool {
	return v.StockOnHand <= v.LowStockThreshold
}

// DisplayName joins product and variant names when the product is loaded.
func (v *ProductVariant) DisplayName() string {
	if v.Product == nil || v.Product.Name == "" {
		return v.Name
	}
	return v.Product.Name + " " + v.Name
}
