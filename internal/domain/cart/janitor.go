// internal/domain/cart/janitor.go
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	redisinfra "github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
)

const janitorLockName = "cart-janitor"

// ReservationExpirer lapses order holds whose payment window closed.
type ReservationExpirer interface {
	ExpireReservations(ctx context.Context) (int64, error)
}

// OrderExpirer cancels orders left unpaid past their payment window.
type OrderExpirer interface {
	CancelExpiredUnpaid(ctx context.Context) (int, error)
}

// JanitorReport summarises one janitor pass
type JanitorReport struct {
	Skipped             bool  `json:"skipped"`
	EntriesSwept        int64 `json:"entries_swept"`
	OrdersCancelled     int   `json:"orders_cancelled"`
	ReservationsExpired int64 `json:"reservations_expired"`
}

// Janitor periodically reconciles cart reservations with live stock. Only
// one replica does the work per tick, coordinated through a Redis lease.
type Janitor struct {
	carts    *Service
	holds    ReservationExpirer
	orders   OrderExpirer
	lock     *redisinfra.Lock
	interval time.Duration
	log      logrus.FieldLogger
}

// NewJanitor wires a janitor. holds may be nil.
func NewJanitor(carts *Service, holds ReservationExpirer, rdb *goredis.Client, cfg config.JanitorConfig, log logrus.FieldLogger) *Janitor {
	token := uuid.NewString()
	return &Janitor{
		carts:    carts,
		holds:    holds,
		lock:     redisinfra.NewLock(rdb, janitorLockName, token, cfg.LockTTL),
		interval: cfg.Interval,
		log:      log.WithFields(logrus.Fields{"component": "cart-janitor", "instance": token}),
	}
}

// WithOrderExpiry makes each pass cancel unpaid orders before lapsing holds.
func (j *Janitor) WithOrderExpiry(orders OrderExpirer) *Janitor {
	j.orders = orders
	return j
}

// Run ticks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.WithField("interval", j.interval.String()).Info("janitor started")
	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.WithError(err).Error("janitor pass failed")
			}
		}
	}
}

// RunOnce performs a single pass if the lease can be taken.
func (j *Janitor) RunOnce(ctx context.Context) (*JanitorReport, error) {
	acquired, err := j.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &JanitorReport{Skipped: true}, nil
	}
	defer func() {
		if err := j.lock.Release(context.WithoutCancel(ctx)); err != nil {
			j.log.WithError(err).Warn("failed to release janitor lock")
		}
	}()

	report := &JanitorReport{}
	report.EntriesSwept, err = j.carts.Sweep(ctx, SweepScope{})
	if err != nil {
		return nil, err
	}
	if j.orders != nil {
		report.OrdersCancelled, err = j.orders.CancelExpiredUnpaid(ctx)
		if err != nil {
			return nil, err
		}
	}
	if j.holds != nil {
		report.ReservationsExpired, err = j.holds.ExpireReservations(ctx)
		if err != nil {
			return nil, err
		}
	}

	if report.EntriesSwept > 0 || report.OrdersCancelled > 0 || report.ReservationsExpired > 0 {
		j.log.WithFields(logrus.Fields{
			"entries_swept":        report.EntriesSwept,
			"orders_cancelled":     report.OrdersCancelled,
			"reservations_expired": report.ReservationsExpired,
		}).Info("janitor pass completed")
	}
	return report, nil
}
