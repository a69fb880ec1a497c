// Package app connects the storage backends and wires the domain services
// shared by the API server and the standalone janitor.
package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/analytics"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/checkout"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/payment"
	"github.com/your-org/lpg-storefront/internal/domain/pickup"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
	"github.com/your-org/lpg-storefront/internal/infrastructure/messaging/kafka"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/routes"
	"github.com/your-org/lpg-storefront/internal/pkg/auth"
	"github.com/your-org/lpg-storefront/internal/pkg/pdf"
	"gorm.io/gorm"
)

// App holds open connections and the services built on them
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	DB       *postgres.DB
	Redis    *redis.Client
	Producer *kafka.Producer
	Services *routes.Services
}

// New connects to Postgres and Redis, migrates the schema and builds every
// service. The Kafka producer, when configured, runs until ctx is done.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		return nil, err
	}
	rc, err := redis.NewConnection(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{Config: cfg, Log: log, DB: db, Redis: rc}

	migration := postgres.NewMigration(db.GetDB(), log)
	if err := migration.RunAutoMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("index creation failed")
	}

	var events order.Publisher = order.NopPublisher{}
	if cfg.KafkaEnabled() {
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BufferSize, log)
		a.Producer.Start(ctx)
		events = kafka.NewOrderPublisher(a.Producer)
	} else {
		log.Info("kafka brokers not configured, order events disabled")
	}

	a.Services = BuildServices(db.GetDB(), rc.GetClient(), events, cfg, log)
	return a, nil
}

// BuildServices wires the domain services over already open backends.
func BuildServices(db *gorm.DB, rdb *goredis.Client, events order.Publisher, cfg *config.Config, log logrus.FieldLogger) *routes.Services {
	jwt := auth.NewJWTManager(cfg)
	products := product.NewService(db, cfg, log)
	inv := inventory.NewService(db, cfg, log)
	carts := cart.NewService(db, inv, cfg, log)
	orders := order.NewService(db, inv, rdb, events, cfg, log)
	pickups := pickup.NewService(db, orders, cfg, log)
	orders.SetPickupIssuer(pickups)

	return &routes.Services{
		Config:    cfg,
		Log:       log,
		JWT:       jwt,
		Users:     user.NewService(db, jwt, cfg, log),
		Products:  products,
		Inventory: inv,
		Carts:     carts,
		Checkout:  checkout.NewService(db, carts, orders, inv, cfg, log),
		Orders:    orders,
		Pickups:   pickups,
		Payments:  payment.NewService(db, orders, payment.NewSnapGateway(cfg), rdb, cfg, log),
		Analytics: analytics.NewService(db, rdb, products, cfg, log),
		PDF:       pdf.NewService(cfg),
	}
}

// Seed loads the starter catalogue, delivery zones and admin account.
func (a *App) Seed(ctx context.Context) error {
	seeder := postgres.NewSeeder(a.DB.GetDB(), a.Services.Users, a.Services.Checkout, a.Log)
	return seeder.SeedInitialData(ctx, a.Config.App.AdminEmail, a.Config.App.AdminPassword)
}

// Janitor returns the cart sweeper, also cancelling overdue unpaid orders.
func (a *App) Janitor() *cart.Janitor {
	s := a.Services
	return cart.NewJanitor(s.Carts, s.Inventory, a.Redis.GetClient(), a.Config.Janitor, a.Log).
		WithOrderExpiry(s.Orders)
}

// Close flushes pending events and closes connections.
func (a *App) Close() {
	if a.Producer != nil {
		a.Producer.Close()
		a.Producer.WaitClosed()
	}
	if err := a.Redis.Close(); err != nil {
		a.Log.WithError(err).Warn("failed to close redis")
	}
	if err := a.DB.Close(); err != nil {
		a.Log.WithError(err).Warn("failed to close database")
	}
}
