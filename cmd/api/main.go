// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/app"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/interfaces/http"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logger.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build logger")
	}
	log.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise")
	}
	defer a.Close()

	if cfg.App.SeedData {
		if err := a.Seed(ctx); err != nil {
			log.WithError(err).Warn("data seeding failed")
		}
	}

	if cfg.Janitor.Enabled {
		go func() {
			_ = a.Janitor().Run(ctx)
		}()
	}

	server := http.NewServer(a.Services, a.DB, a.Redis)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("http server did not stop cleanly")
	}
	cancel()
	log.Info("shutdown complete")
}
