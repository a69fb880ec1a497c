// internal/pkg/txn/txn.go
package txn

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/your-org/lpg-storefront/internal/pkg/retry"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the runner cares about.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Runner executes units of work inside a database transaction and retries
// the ones aborted by serialization failures or deadlocks.
type Runner struct {
	db    *gorm.DB
	retry *retry.Config
}

// NewRunner creates a Runner. attempts below 1 means a single try.
func NewRunner(db *gorm.DB, attempts int) *Runner {
	return &Runner{
		db: db,
		retry: &retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  20 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}
}

// Run executes fn in a fresh transaction. fn may be invoked more than once,
// so it must not leak side effects outside tx before returning.
func (r *Runner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return retry.Do(ctx, r.retry, IsRetryable, func() error {
		return r.db.WithContext(ctx).Transaction(fn)
	})
}

// DB returns the underlying handle.
func (r *Runner) DB() *gorm.DB {
	return r.db
}

// IsRetryable reports whether err is a transient transaction abort.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
