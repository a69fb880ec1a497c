// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// MovementType represents the direction of a stock movement
type MovementType string

const (
	MovementTypeInbound  MovementType = "inbound"
	MovementTypeOutbound MovementType = "outbound"
)

// MovementReason represents the reason for a stock movement
type MovementReason string

const (
	ReasonSale       MovementReason = "sale"
	ReasonRestock    MovementReason = "restock"
	ReasonReturn     MovementReason = "return"
	ReasonDamage     MovementReason = "damage"
	ReasonAdjustment MovementReason = "adjustment"
)

// ReservationStatus is the state of an order hold
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
	ReservationReturned  ReservationStatus = "returned"
)

// StockMovement is an append-only record of every change to a variant's
// stock on hand.
type StockMovement struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	VariantID        uint           `gorm:"not null;index" json:"variant_id"`
	MovementType     MovementType   `gorm:"not null;size:20" json:"movement_type"`
	Reason           MovementReason `gorm:"not null;size:20" json:"reason"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	PreviousQuantity int            `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int            `gorm:"not null" json:"new_quantity"`
	ReferenceType    string         `gorm:"size:50" json:"reference_type"`
	ReferenceID      uint           `json:"reference_id"`
	Notes            string         `gorm:"type:text" json:"notes"`
	CreatedBy        *uint          `gorm:"index" json:"created_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// StockReservation holds units for an order between checkout and payment.
// Cart entries are the holds before checkout; these take over afterwards.
type StockReservation struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	VariantID   uint              `gorm:"not null;index" json:"variant_id"`
	OrderID     uint              `gorm:"not null;index" json:"order_id"`
	OrderItemID uint              `gorm:"not null;index" json:"order_item_id"`
	Quantity    int               `gorm:"not null" json:"quantity"`
	Status      ReservationStatus `gorm:"not null;size:20;default:'active';index" json:"status"`
	ExpiresAt   time.Time         `json:"expires_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (StockMovement) TableName() string    { return "stock_movements" }
func (StockReservation) TableName() string { return "stock_reservations" }

// IsLive reports whether the hold still counts against availability.
func (r *StockReservation) IsLive(now time.Time) bool {
	return r.Status == ReservationActive && now.Before(r.ExpiresAt)
}
