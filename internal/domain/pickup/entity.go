// internal/domain/pickup/entity.go
package pickup

import "time"

// TokenStatus is whether a token can still be redeemed. Expiry is derived
// from ExpiresAt and never stored.
type TokenStatus string

const (
	TokenActive  TokenStatus = "ACTIVE"
	TokenUsed    TokenStatus = "USED"
	TokenRevoked TokenStatus = "REVOKED"
)

// PickupToken is the code a customer shows at the depot to collect a
// pickup order.
type PickupToken struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    uint        `gorm:"not null;index" json:"order_id"`
	Code       string      `gorm:"uniqueIndex;not null;size:9" json:"code"`
	Status     TokenStatus `gorm:"not null;size:10;default:'ACTIVE'" json:"status"`
	ExpiresAt  time.Time   `gorm:"not null" json:"expires_at"`
	UsedAt     *time.Time  `json:"used_at"`
	VerifiedBy *uint       `json:"verified_by"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName overrides the table name
func (PickupToken) TableName() string { return "pickup_tokens" }

// IsExpired reports whether the token's validity window has closed.
func (t *PickupToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRedeemable reports whether the token can still be used at now.
func (t *PickupToken) IsRedeemable(now time.Time) bool {
	return t.CheckRedeemable(now) == nil
}

// CheckRedeemable returns the sentinel error explaining why the token cannot
// be used at now, or nil.
func (t *PickupToken) CheckRedeemable(now time.Time) error {
	switch {
	case t.Status == TokenUsed:
		return ErrTokenUsed
	case t.Status == TokenRevoked:
		return ErrTokenRevoked
	case t.IsExpired(now):
		return ErrTokenExpired
	}
	return nil
}
