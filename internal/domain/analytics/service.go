// internal/domain/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"gorm.io/gorm"
)

// Statuses that count as revenue. Cancelled orders are refunded and excluded.
var revenueStatuses = []order.Status{
	order.StatusPaid,
	order.StatusProcessed,
	order.StatusWaitingForPickup,
	order.StatusPickedUp,
	order.StatusOnDelivery,
	order.StatusDone,
}

const maxUpdateOrders = 100

// Service handles dashboard analytics
type Service struct {
	db       *gorm.DB
	redis    *goredis.Client
	products *product.Service
	config   *config.Config
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService creates a new analytics service
func NewService(db *gorm.DB, rdb *goredis.Client, products *product.Service, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		db:       db,
		redis:    rdb,
		products: products,
		config:   cfg,
		log:      log.WithField("component", "analytics"),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// DashboardStats is the back-office landing view
type DashboardStats struct {
	Version        int64                  `json:"version"`
	OrdersByStatus map[order.Status]int64 `json:"orders_by_status"`
	OrdersToday    int64                  `json:"orders_today"`
	RevenueToday   decimal.Decimal        `json:"revenue_today"`
	TotalRevenue   decimal.Decimal        `json:"total_revenue"`
	PendingPickups int64                  `json:"pending_pickups"`
	LowStock       []LowStockData         `json:"low_stock"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// LowStockData is a variant at or below its threshold
type LowStockData struct {
	VariantID    uint   `json:"variant_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	ReorderLevel int    `json:"reorder_level"`
}

// TimeSeriesData is one day of paid sales
type TimeSeriesData struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
	Count int64           `json:"count"`
}

// ProductSalesData ranks variants by units sold
type ProductSalesData struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	TotalSold   int64           `json:"total_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// SalesAnalytics summarises paid sales over a period
type SalesAnalytics struct {
	Days         int                `json:"days"`
	DailyRevenue []TimeSeriesData   `json:"daily_revenue"`
	TotalSales   int64              `json:"total_sales"`
	TotalRevenue decimal.Decimal    `json:"total_revenue"`
	TopProducts  []ProductSalesData `json:"top_products"`
}

// DashboardUpdate answers a poll from the dashboard
type DashboardUpdate struct {
	Version int64                  `json:"version"`
	Changed bool                   `json:"changed"`
	Orders  []order.StatusSnapshot `json:"orders"`
}

type statusCount struct {
	Status order.Status
	Count  int64
}

// GetDashboardStats retrieves the dashboard statistics
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &DashboardStats{
		OrdersByStatus: make(map[order.Status]int64, len(order.AllStatuses)),
		GeneratedAt:    now,
	}
	for _, st := range order.AllStatuses {
		stats.OrdersByStatus[st] = 0
	}

	var counts []statusCount
	if err := db.Raw("SELECT status, COUNT(*) AS count FROM orders GROUP BY status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	for _, c := range counts {
		stats.OrdersByStatus[c.Status] = c.Count
	}
	stats.PendingPickups = stats.OrdersByStatus[order.StatusWaitingForPickup]

	if err := db.Raw("SELECT COUNT(*) FROM orders WHERE created_at >= ?", today).Row().Scan(&stats.OrdersToday); err != nil {
		return nil, fmt.Errorf("failed to count today's orders: %w", err)
	}

	var err error
	if stats.TotalRevenue, err = s.revenue(db, time.Time{}); err != nil {
		return nil, err
	}
	if stats.RevenueToday, err = s.revenue(db, today); err != nil {
		return nil, err
	}

	variants, err := s.products.LowStockVariants(ctx)
	if err != nil {
		return nil, err
	}
	stats.LowStock = make([]LowStockData, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		stats.LowStock = append(stats.LowStock, LowStockData{
			VariantID:    v.ID,
			SKU:          v.SKU,
			Name:         v.DisplayName(),
			CurrentStock: v.StockOnHand,
			ReorderLevel: v.LowStockThreshold,
		})
	}

	if stats.Version, err = order.DashboardVersion(ctx, s.redis); err != nil {
		s.log.WithError(err).Warn("dashboard version unavailable")
	}
	return stats, nil
}

// GetSalesAnalytics retrieves paid sales for the last days days
func (s *Service) GetSalesAnalytics(ctx context.Context, days int) (*SalesAnalytics, error) {
	if days <= 0 || days > 366 {
		days = 30
	}
	db := s.db.WithContext(ctx)
	startDate := s.now().AddDate(0, 0, -days)

	analytics := &SalesAnalytics{Days: days, DailyRevenue: []TimeSeriesData{}, TopProducts: []ProductSalesData{}}

	rows, err := db.Raw(`
		SELECT
			CAST(DATE(paid_at) AS TEXT) AS date,
			COALESCE(SUM(total), 0) AS revenue,
			COUNT(*) AS order_count
		FROM orders
		WHERE paid_at >= ? AND status IN ?
		GROUP BY DATE(paid_at)
		ORDER BY DATE(paid_at)
	`, startDate, revenueStatuses).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to get daily revenue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data TimeSeriesData
		if err := rows.Scan(&data.Date, &data.Value, &data.Count); err != nil {
			return nil, fmt.Errorf("failed to read daily revenue: %w", err)
		}
		analytics.DailyRevenue = append(analytics.DailyRevenue, data)
		analytics.TotalSales += data.Count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily revenue: %w", err)
	}

	if analytics.TotalRevenue, err = s.revenue(db, startDate); err != nil {
		return nil, err
	}

	productRows, err := db.Raw(`
		SELECT
			oi.sku,
			oi.product_name,
			oi.variant_name,
			COALESCE(SUM(oi.quantity), 0) AS total_sold,
			COALESCE(SUM(oi.line_total), 0) AS revenue
		FROM order_items oi
		JOIN orders o ON oi.order_id = o.id
		WHERE o.paid_at >= ? AND o.status IN ?
		GROUP BY oi.sku, oi.product_name, oi.variant_name
		ORDER BY total_sold DESC, oi.sku ASC
		LIMIT 10
	`, startDate, revenueStatuses).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to get top products: %w", err)
	}
	defer productRows.Close()
	for productRows.Next() {
		var p ProductSalesData
		if err := productRows.Scan(&p.SKU, &p.ProductName, &p.VariantName, &p.TotalSold, &p.Revenue); err != nil {
			return nil, fmt.Errorf("failed to read top products: %w", err)
		}
		analytics.TopProducts = append(analytics.TopProducts, p)
	}
	if err := productRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top products: %w", err)
	}

	return analytics, nil
}

// GetUpdates lets the dashboard poll cheaply: when the version has not moved
// since sinceVersion nothing is loaded.
func (s *Service) GetUpdates(ctx context.Context, sinceVersion int64, since time.Time) (*DashboardUpdate, error) {
	version, err := order.DashboardVersion(ctx, s.redis)
	if err != nil {
		return nil, err
	}
	update := &DashboardUpdate{Version: version, Orders: []order.StatusSnapshot{}}
	if version == sinceVersion {
		return update, nil
	}
	update.Changed = true

	var orders []order.Order
	query := s.db.WithContext(ctx).
		Select("id", "order_number", "status", "updated_at").
		Order("updated_at DESC, id DESC").
		Limit(maxUpdateOrders)
	if !since.IsZero() {
		query = query.Where("updated_at > ?", since)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve updated orders: %w", err)
	}
	for _, o := range orders {
		update.Orders = append(update.Orders, order.StatusSnapshot{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			UpdatedAt:   o.UpdatedAt,
		})
	}
	return update, nil
}

func (s *Service) revenue(db *gorm.DB, from time.Time) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(total), 0) FROM orders WHERE status IN ?"
	args := []interface{}{revenueStatuses}
	if !from.IsZero() {
		query += " AND paid_at >= ?"
		args = append(args, from)
	}
	var total decimal.Decimal
	if err := db.Raw(query, args...).Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}
