// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/analytics"
)

// AnalyticsHandler handles dashboard endpoints
type AnalyticsHandler struct {
	analytics *analytics.Service
	log       logrus.FieldLogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc *analytics.Service, log logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc, log: log}
}

// GetDashboard handles GET /admin/analytics/dashboard
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := h.analytics.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Dashboard data retrieved successfully", stats)
}

// GetSales handles GET /admin/analytics/sales
func (h *AnalyticsHandler) GetSales(c *gin.Context) {
	sales, err := h.analytics.GetSalesAnalytics(c.Request.Context(), queryInt(c, "days", 30, 365))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Sales analytics retrieved successfully", sales)
}

// GetUpdates handles GET /admin/analytics/updates. The dashboard polls it
// with the version it last saw.
func (h *AnalyticsHandler) GetUpdates(c *gin.Context) {
	var version int64
	if raw := c.Query("since_version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since_version"})
			return
		}
		version = v
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since, expected RFC3339"})
			return
		}
		since = t
	}

	update, err := h.analytics.GetUpdates(c.Request.Context(), version, since)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, "Updates retrieved successfully", update)
}
