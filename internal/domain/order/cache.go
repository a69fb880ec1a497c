// internal/domain/order/cache.go
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisinfra "github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
)

// StatusSnapshot is the cached view of an order's status used by polling
// clients.
type StatusSnapshot struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      Status    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func snapshotOf(o *Order) StatusSnapshot {
	return StatusSnapshot{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (s *Service) cacheStatus(ctx context.Context, o *Order) {
	if s.rdb == nil {
		return
	}
	body, err := json.Marshal(snapshotOf(o))
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, redisinfra.OrderStatusKey(o.ID), body, s.config.Order.StatusCacheTTL).Err(); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("failed to cache order status")
	}
}

func (s *Service) cachedStatus(ctx context.Context, orderID uint) (*StatusSnapshot, bool) {
	if s.rdb == nil {
		return nil, false
	}
	body, err := s.rdb.Get(ctx, redisinfra.OrderStatusKey(orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.WithError(err).WithField("order_id", orderID).Warn("failed to read order status cache")
		}
		return nil, false
	}
	var snap StatusSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (s *Service) bumpDashboardVersion(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, redisinfra.KeyDashboardVersion).Err(); err != nil {
		s.log.WithError(err).Warn("failed to bump dashboard version")
	}
}

// DashboardVersion reads the counter bumped on every order change. A
// missing key reads as zero.
func DashboardVersion(ctx context.Context, rdb *goredis.Client) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	v, err := rdb.Get(ctx, redisinfra.KeyDashboardVersion).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read dashboard version: %w", err)
	}
	return v, nil
}
