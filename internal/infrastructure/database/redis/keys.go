// internal/infrastructure/database/redis/keys.go
package redis

import (
	"fmt"
	"time"
)

const (
	// order_status:{order_id} -> status string
	keyOrderStatus = "order_status:%d"

	// dashboard:version -> monotonically increasing counter, bumped on every order change
	KeyDashboardVersion = "dashboard:version"

	// lock:{name} -> holder id
	keyLock = "lock:%s"

	// rate_limit:{client_ip}
	keyRateLimit = "rate_limit:%s"

	// payment:notification:{transaction_id} -> processed marker
	keyPaymentDedup = "payment:notification:%s"
)

var (
	TTLPaymentDedup = 48 * time.Hour
)

// OrderStatusKey is the cache key for an order's status.
func OrderStatusKey(orderID uint) string { return fmt.Sprintf(keyOrderStatus, orderID) }

// LockKey is the key guarding a named singleton job.
func LockKey(name string) string { return fmt.Sprintf(keyLock, name) }

// RateLimitKey is the per-client request counter.
func RateLimitKey(clientIP string) string { return fmt.Sprintf(keyRateLimit, clientIP) }

// PaymentDedupKey marks a payment notification as processed.
func PaymentDedupKey(transactionID string) string {
	return fmt.Sprintf(keyPaymentDedup, transactionID)
}
