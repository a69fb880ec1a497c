package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/payment"
	"github.com/your-org/lpg-storefront/internal/domain/pickup"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/auth"
)

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

// respondError maps domain errors onto status codes. Anything unrecognised
// is logged and reported as a generic 500.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	var (
		notFound   *apperror.NotFoundError
		validation *apperror.ValidationError
		conflict   *apperror.ConflictError
		stock      *cart.InsufficientStockError
		transition *order.InvalidTransitionError
	)

	switch {
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error":              transition.Error(),
			"current_status":     transition.Current,
			"attempted_status":   transition.Attempted,
			"available_statuses": transition.Available,
		})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Insufficient stock",
			"details": stock,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Error(),
			"field": validation.Field,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.Is(err, pickup.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pickup.ErrTokenUsed), errors.Is(err, pickup.ErrTokenExpired),
		errors.Is(err, pickup.ErrTokenRevoked), errors.Is(err, inventory.ErrStockUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, payment.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
