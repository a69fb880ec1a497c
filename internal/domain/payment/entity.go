// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is our view of a payment attempt
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Payment records one gateway transaction for an order.
type Payment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderID           uint            `gorm:"not null;index" json:"order_id"`
	OrderNumber       string          `gorm:"not null;size:50;index" json:"order_number"`
	Provider          string          `gorm:"not null;size:30" json:"provider"`
	TransactionID     *string         `gorm:"uniqueIndex;size:100" json:"transaction_id,omitempty"`
	TransactionStatus string          `gorm:"size:30" json:"transaction_status"`
	FraudStatus       string          `gorm:"size:30" json:"fraud_status,omitempty"`
	PaymentType       string          `gorm:"size:50" json:"payment_type,omitempty"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status            Status          `gorm:"not null;size:20;index" json:"status"`
	SnapToken         string          `gorm:"size:100" json:"snap_token,omitempty"`
	RedirectURL       string          `gorm:"size:500" json:"redirect_url,omitempty"`
	RawPayload        string          `gorm:"type:text" json:"-"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Payment) TableName() string { return "payments" }
