// cmd/janitor/main.go runs the cart sweeper on its own, for deployments
// that keep it out of the API process. Replicas coordinate through the
// Redis lease, so running several is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/app"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log, err := logger.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise")
	}
	defer a.Close()

	janitor := a.Janitor()
	if *once {
		report, err := janitor.RunOnce(ctx)
		if err != nil {
			log.WithError(err).Error("janitor pass failed")
			return
		}
		log.WithField("report", report).Info("janitor pass finished")
		return
	}

	if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("janitor stopped")
	}
}
