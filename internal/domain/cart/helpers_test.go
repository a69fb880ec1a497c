package cart

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
	"gorm.io/gorm"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{TxRetries: 1},
		Cart:     config.CartConfig{ReservationTTL: 15 * time.Minute},
		Janitor:  config.JanitorConfig{Interval: time.Minute, LockTTL: 30 * time.Second},
	}
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	inv   *inventory.Service
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t,
		&product.Category{}, &product.Product{}, &product.ProductVariant{},
		&inventory.StockReservation{}, &inventory.StockMovement{},
		&CartEntry{},
	)
	cfg := testConfig()
	log := logger.Discard()
	clk := newClock()

	inv := inventory.NewService(db, cfg, log)
	inv.SetClock(clk.Now)
	svc := NewService(db, inv, cfg, log)
	svc.SetClock(clk.Now)

	return &fixture{db: db, svc: svc, inv: inv, clock: clk}
}

var skuSeq int

func (f *fixture) variant(t *testing.T, stock int, price string) *product.ProductVariant {
	t.Helper()
	skuSeq++
	cat := product.Category{Name: "Refill", Slug: fmt.Sprintf("refill-%d", skuSeq)}
	require.NoError(t, f.db.Create(&cat).Error)
	p := product.Product{Name: "LPG", Slug: fmt.Sprintf("lpg-%d", skuSeq), CategoryID: cat.ID, IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)
	v := product.ProductVariant{
		ProductID:   p.ID,
		SKU:         fmt.Sprintf("LPG-%d", skuSeq),
		Name:        "12 kg",
		Price:       decimal.RequireFromString(price),
		StockOnHand: stock,
		IsActive:    true,
	}
	require.NoError(t, f.db.Create(&v).Error)
	return &v
}

func (f *fixture) setStock(t *testing.T, variantID uint, stock int) {
	t.Helper()
	require.NoError(t, f.db.Model(&product.ProductVariant{}).Where("id = ?", variantID).Update("stock_on_hand", stock).Error)
}

func (f *fixture) entries(t *testing.T, variantID uint) []CartEntry {
	t.Helper()
	var out []CartEntry
	require.NoError(t, f.db.Where("variant_id = ?", variantID).Order("id").Find(&out).Error)
	return out
}

func add(variantID uint, qty int) *AddItemRequest {
	return &AddItemRequest{VariantID: variantID, Quantity: qty}
}
