// internal/interfaces/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/lpg-storefront/internal/infrastructure/database/redis"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/routes"
)

// Server represents the HTTP server
type Server struct {
	services   *routes.Services
	gin        *gin.Engine
	httpServer *http.Server
	db         *postgres.DB
	cache      *redis.Client
	log        logrus.FieldLogger
	startedAt  time.Time
}

// NewServer creates a new HTTP server instance with middleware and routes
// installed.
func NewServer(services *routes.Services, db *postgres.DB, cache *redis.Client) *Server {
	s := &Server{
		services:  services,
		db:        db,
		cache:     cache,
		log:       services.Log,
		startedAt: time.Now(),
	}

	if services.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.gin = gin.New()
	if len(services.Config.Security.TrustedProxies) > 0 {
		if err := s.gin.SetTrustedProxies(services.Config.Security.TrustedProxies); err != nil {
			s.log.WithError(err).Warn("invalid trusted proxies, ignoring")
		}
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	cfg := s.services.Config
	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	s.log.WithField("port", cfg.Server.Port).Info("http server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("shutting down http server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.log.Info("http server stopped")
	return nil
}

func (s *Server) setupMiddleware() {
	cfg := s.services.Config

	s.gin.Use(gin.Recovery())
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.log))
	s.gin.Use(middleware.CORS(cfg))
	s.gin.Use(middleware.SecurityHeaders())
	s.gin.Use(middleware.RateLimit(cfg.Security.RateLimitPerMinute, s.cache.GetClient(), s.log))
	s.gin.Use(middleware.RequestSizeLimit(1 << 20))
	s.gin.Use(middleware.Timeout(cfg.Server.RequestTimeout))
}

func (s *Server) setupRoutes() {
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)

	routes.SetupRoutes(s.gin.Group("/api/v1"), s.services)
}

// healthCheck reports whether the database and Redis answer
func (s *Server) healthCheck(c *gin.Context) {
	if !s.backendsUp(c, "unhealthy") {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     s.services.Config.App.Version,
		"environment": s.services.Config.App.Environment,
	})
}

func (s *Server) readinessCheck(c *gin.Context) {
	if !s.backendsUp(c, "not ready") {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// backendsUp pings both stores and answers 503 with status when either is
// down.
func (s *Server) backendsUp(c *gin.Context, status string) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{"database", s.db.Health},
		{"redis", s.cache.Health},
	}
	for _, chk := range checks {
		if err := chk.check(ctx); err != nil {
			s.log.WithError(err).WithField("backend", chk.name).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": status,
				"error":  chk.name + " unavailable",
			})
			return false
		}
	}
	return true
}
