// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/checkout"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/payment"
	"github.com/your-org/lpg-storefront/internal/domain/pickup"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"gorm.io/gorm"
)

// Models lists every table in dependency order
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.Address{},

		&product.Category{},
		&product.Product{},
		&product.ProductVariant{},

		&inventory.StockMovement{},
		&cart.CartEntry{},

		&checkout.DeliveryZone{},
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
		&inventory.StockReservation{},
		&pickup.PickupToken{},
		&payment.Payment{},
	}
}

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{db: db, log: log.WithField("component", "migration")}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("running database auto-migrations")
	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}
	m.log.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates indexes the struct tags cannot express
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// Reservation sums scan live cart holds per variant
		"CREATE INDEX IF NOT EXISTS idx_cart_entries_held ON cart_entries(variant_id, expires_at) WHERE is_preorder = false",
		"CREATE INDEX IF NOT EXISTS idx_cart_entries_owner ON cart_entries(owner_kind, owner_id)",

		"CREATE INDEX IF NOT EXISTS idx_stock_reservations_active ON stock_reservations(variant_id, expires_at) WHERE status = 'active'",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_variant_created ON stock_movements(variant_id, created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_paid_at ON orders(paid_at) WHERE paid_at IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at)",

		// At most one usable code per order
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_pickup_tokens_one_active ON pickup_tokens(order_id) WHERE status = 'ACTIVE'",

		"CREATE INDEX IF NOT EXISTS idx_payments_order_status ON payments(order_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_addresses_user_default ON addresses(user_id, is_default)",
		"CREATE INDEX IF NOT EXISTS idx_users_role_active ON users(role, is_active)",
	}

	failed := 0
	for _, stmt := range indexes {
		if err := m.db.Exec(stmt).Error; err != nil {
			m.log.WithError(err).WithField("sql", stmt).Warn("failed to create index")
			failed++
		}
	}
	m.log.WithFields(logrus.Fields{"created": len(indexes) - failed, "failed": failed}).Info("indexes ensured")
	if failed > 0 {
		return fmt.Errorf("%d indexes failed", failed)
	}
	return nil
}

// Seeder fills an empty database with a usable catalog
type Seeder struct {
	db    *gorm.DB
	users *user.Service
	zones *checkout.Service
	log   logrus.FieldLogger
}

// NewSeeder creates a seeder
func NewSeeder(db *gorm.DB, users *user.Service, zones *checkout.Service, log logrus.FieldLogger) *Seeder {
	return &Seeder{db: db, users: users, zones: zones, log: log.WithField("component", "seeder")}
}

// SeedInitialData is idempotent: existing rows are left alone
func (s *Seeder) SeedInitialData(ctx context.Context, adminEmail, adminPassword string) error {
	categories, err := s.seedCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := s.seedCatalog(ctx, categories); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := s.seedZones(ctx); err != nil {
		return fmt.Errorf("failed to seed delivery zones: %w", err)
	}
	if adminEmail != "" {
		admin, err := s.users.EnsureUser(ctx, adminEmail, adminPassword, "Store Admin", user.RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		s.log.WithField("user_id", admin.ID).Info("admin account ready")
	}
	s.log.Info("initial data seeded")
	return nil
}

func (s *Seeder) seedCategories(ctx context.Context) (map[string]uint, error) {
	categories := []product.Category{
		{Name: "Gas Refill", Slug: "refill", Description: "Refill exchange for an empty cylinder", SortOrder: 1, IsActive: true},
		{Name: "New Cylinder", Slug: "cylinder", Description: "Cylinder with first fill", SortOrder: 2, IsActive: true},
		{Name: "Accessories", Slug: "accessories", Description: "Regulators, hoses and stoves", SortOrder: 3, IsActive: true},
	}

	ids := make(map[string]uint, len(categories))
	for _, c := range categories {
		c := c
		if err := s.db.WithContext(ctx).Where("slug = ?", c.Slug).FirstOrCreate(&c).Error; err != nil {
			return nil, err
		}
		ids[c.Slug] = c.ID
	}
	return ids, nil
}

type seedVariant struct {
	sku    string
	name   string
	sizeKg string
	price  int64
	stock  int
}

type seedProduct struct {
	category string
	name     string
	slug     string
	brand    string
	variants []seedVariant
}

var catalog = []seedProduct{
	{category: "refill", name: "Elpiji Refill", slug: "elpiji-refill", brand: "Pertamina", variants: []seedVariant{
		{"ELP-RF-3", "3 kg", "3", 22000, 40},
		{"ELP-RF-5", "5.5 kg", "5.5", 95000, 20},
		{"ELP-RF-12", "12 kg", "12", 210000, 25},
	}},
	{category: "refill", name: "Bright Gas Refill", slug: "bright-gas-refill", brand: "Pertamina", variants: []seedVariant{
		{"BRG-RF-5", "5.5 kg", "5.5", 98000, 15},
		{"BRG-RF-12", "12 kg", "12", 215000, 15},
	}},
	{category: "cylinder", name: "Elpiji Cylinder + Fill", slug: "elpiji-cylinder", brand: "Pertamina", variants: []seedVariant{
		{"ELP-CY-12", "12 kg", "12", 750000, 6},
	}},
	{category: "accessories", name: "Low Pressure Regulator", slug: "regulator", brand: "Winn Gas", variants: []seedVariant{
		{"ACC-REG-01", "Standard", "0", 125000, 30},
	}},
}

func (s *Seeder) seedCatalog(ctx context.Context, categories map[string]uint) error {
	db := s.db.WithContext(ctx)
	for _, sp := range catalog {
		var p product.Product
		err := db.Where("slug = ?", sp.slug).First(&p).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		p = product.Product{
			Name:       sp.name,
			Slug:       sp.slug,
			Brand:      sp.brand,
			CategoryID: categories[sp.category],
			IsActive:   true,
		}
		for _, sv := range sp.variants {
			p.Variants = append(p.Variants, product.ProductVariant{
				SKU:               sv.sku,
				Name:              sv.name,
				SizeKg:            decimal.RequireFromString(sv.sizeKg),
				Price:             decimal.NewFromInt(sv.price),
				StockOnHand:       sv.stock,
				LowStockThreshold: 5,
				IsActive:          true,
			})
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"product": p.Slug, "variants": len(p.Variants)}).Info("product seeded")
	}
	return nil
}

func (s *Seeder) seedZones(ctx context.Context) error {
	freeAbove := decimal.NewFromInt(500000)
	zones := []checkout.ZoneRequest{
		{Code: "CENTRAL", Name: "City centre", Fee: decimal.NewFromInt(10000), FreeAbove: &freeAbove},
		{Code: "SUBURB", Name: "Outer districts", Fee: decimal.NewFromInt(20000)},
	}

	existing, err := s.zones.ListZones(ctx, false)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, z := range existing {
		known[z.Code] = true
	}
	for i := range zones {
		if known[zones[i].Code] {
			continue
		}
		if _, err := s.zones.SaveZone(ctx, &zones[i]); err != nil {
			return err
		}
	}
	return nil
}

// DropAllTables drops every table. Development only.
func (m *Migration) DropAllTables() error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", models[i], err)
		}
	}
	m.log.Warn("all tables dropped")
	return nil
}
