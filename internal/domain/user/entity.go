// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"

	"github.com/your-org/lpg-storefront/internal/domain/order"
	"gorm.io/gorm"
)

// Role decides which back-office surfaces a user may reach
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin || r == RoleOperator
}

// User represents the user entity
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Email       string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password    string         `gorm:"not null;size:255" json:"-"`
	FullName    string         `gorm:"size:150" json:"full_name"`
	Phone       string         `gorm:"size:20" json:"phone"`
	Role        Role           `gorm:"not null;size:20;default:'customer';index" json:"role"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Addresses []Address `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"addresses,omitempty"`
}

// Address is a saved delivery destination
type Address struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Label         string    `gorm:"size:50" json:"label"`
	RecipientName string    `gorm:"size:100;not null" json:"recipient_name"`
	Phone         string    `gorm:"size:20;not null" json:"phone"`
	AddressLine   string    `gorm:"size:255;not null" json:"address_line"`
	City          string    `gorm:"size:100;not null" json:"city"`
	PostalCode    string    `gorm:"size:20" json:"postal_code"`
	Landmark      string    `gorm:"size:255" json:"landmark"`
	IsDefault     bool      `gorm:"default:false" json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// TableName overrides the table name for Address
func (Address) TableName() string {
	return "addresses"
}

// BeforeCreate hook to handle business logic before user creation
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return nil
}

// IsStaff reports whether the user works the back office.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}

// GetDisplayName returns display name (full name or email)
func (u *User) GetDisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Email
}

// ToOrderAddress copies the address onto an order.
func (a *Address) ToOrderAddress() order.Address {
	return order.Address{
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		AddressLine:   a.AddressLine,
		City:          a.City,
		PostalCode:    a.PostalCode,
		Landmark:      a.Landmark,
	}
}
