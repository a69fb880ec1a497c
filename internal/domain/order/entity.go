// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the order status
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPaid             Status = "PAID"
	StatusProcessed        Status = "PROCESSED"
	StatusWaitingForPickup Status = "WAITING_FOR_PICKUP"
	StatusPickedUp         Status = "PICKED_UP"
	StatusOnDelivery       Status = "ON_DELIVERY"
	StatusDone             Status = "DONE"
	StatusCancelled        Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusPending,
	StatusPaid,
	StatusProcessed,
	StatusWaitingForPickup,
	StatusPickedUp,
	StatusOnDelivery,
	StatusDone,
	StatusCancelled,
}

// FulfillmentMethod is how the customer receives the cylinders
type FulfillmentMethod string

const (
	FulfillmentPickup   FulfillmentMethod = "PICKUP"
	FulfillmentDelivery FulfillmentMethod = "DELIVERY"
)

// Valid reports whether m is a known method.
func (m FulfillmentMethod) Valid() bool {
	return m == FulfillmentPickup || m == FulfillmentDelivery
}

// Order represents the order entity
type Order struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	OrderNumber       string            `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID            uint              `gorm:"not null;index" json:"user_id"`
	Status            Status            `gorm:"not null;size:30;default:'PENDING';index" json:"status"`
	FulfillmentMethod FulfillmentMethod `gorm:"not null;size:20" json:"fulfillment_method"`

	// Financial Information
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_fee"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency    string          `gorm:"size:3;default:'IDR'" json:"currency"`
	PaymentRef  string          `gorm:"size:100;index" json:"payment_ref"`

	// Delivery, empty for pickup orders
	ShippingAddress  Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	DeliveryZoneCode string  `gorm:"size:20" json:"delivery_zone_code"`

	CustomerNotes string `gorm:"type:text" json:"customer_notes"`
	CancelReason  string `gorm:"type:text" json:"cancel_reason,omitempty"`

	// Milestones
	PaidAt       *time.Time `json:"paid_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
	ReadyAt      *time.Time `json:"ready_at"`
	PickedUpAt   *time.Time `json:"picked_up_at"`
	DispatchedAt *time.Time `json:"dispatched_at"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem is a snapshot of one cart line at checkout
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	VariantID   uint            `gorm:"not null;index" json:"variant_id"`
	SKU         string          `gorm:"not null;size:100" json:"sku"`
	ProductName string          `gorm:"not null;size:255" json:"product_name"`
	VariantName string          `gorm:"size:255" json:"variant_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	IsPreorder  bool            `gorm:"default:false" json:"is_preorder"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	FromStatus Status    `gorm:"size:30" json:"from_status"`
	ToStatus   Status    `gorm:"not null;size:30" json:"to_status"`
	ActorID    *uint     `gorm:"index" json:"actor_id"`
	ActorRole  ActorRole `gorm:"size:20" json:"actor_role"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// Address is the delivery destination embedded in an order
type Address struct {
	RecipientName string `gorm:"size:100" json:"recipient_name"`
	Phone         string `gorm:"size:20" json:"phone"`
	AddressLine   string `gorm:"size:255" json:"address_line"`
	City          string `gorm:"size:100" json:"city"`
	PostalCode    string `gorm:"size:20" json:"postal_code"`
	Landmark      string `gorm:"size:255" json:"landmark"`
}

// IsZero reports whether no address was given.
func (a Address) IsZero() bool {
	return a.AddressLine == "" && a.City == ""
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// ActorRole says who drove a status change
type ActorRole string

const (
	ActorSystem   ActorRole = "system"
	ActorAdmin    ActorRole = "admin"
	ActorCustomer ActorRole = "customer"
	ActorOperator ActorRole = "operator"
)

// Actor is the user (if any) behind a status change
type Actor struct {
	ID   *uint
	Role ActorRole
}

// SystemActor is used by webhooks and background jobs.
func SystemActor() Actor { return Actor{Role: ActorSystem} }

// UserActor builds an actor for a signed-in user.
func UserActor(id uint, role ActorRole) Actor {
	return Actor{ID: &id, Role: role}
}

// FormatOrderNumber renders LPG-YYYYMMDD-NNNNN.
func FormatOrderNumber(createdAt time.Time, id uint) string {
	return fmt.Sprintf("LPG-%s-%05d", createdAt.Format("20060102"), id)
}

// IsTerminal reports whether no further transitions exist.
func (o *Order) IsTerminal() bool {
	return len(AvailableNextStatuses(o.Status, o.FulfillmentMethod)) == 0
}

// IsPaid reports whether the order has been paid, whatever happened since.
func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}

// stamp records the milestone timestamp for entering status.
func (o *Order) stamp(status Status, at time.Time) []string {
	switch status {
	case StatusPaid:
		o.PaidAt = &at
		return []string{"paid_at"}
	case StatusProcessed:
		o.ProcessedAt = &at
		return []string{"processed_at"}
	case StatusWaitingForPickup:
		o.ReadyAt = &at
		return []string{"ready_at"}
	case StatusPickedUp:
		o.PickedUpAt = &at
		return []string{"picked_up_at"}
	case StatusOnDelivery:
		o.DispatchedAt = &at
		return []string{"dispatched_at"}
	case StatusDone:
		o.CompletedAt = &at
		if o.FulfillmentMethod == FulfillmentDelivery {
			o.DeliveredAt = &at
			return []string{"completed_at", "delivered_at"}
		}
		return []string{"completed_at"}
	case StatusCancelled:
		o.CancelledAt = &at
		return []string{"cancelled_at"}
	}
	return nil
}
