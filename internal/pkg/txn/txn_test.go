package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
	"gorm.io/gorm"
)

type counter struct {
	ID    uint `gorm:"primaryKey"`
	Value int
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
}

func TestRunRetriesSerializationFailures(t *testing.T) {
	db := testdb.New(t, &counter{})
	runner := NewRunner(db, 3)

	attempts := 0
	err := runner.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&counter{Value: attempts}).Error; err != nil {
			return err
		}
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	var rows []counter
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "aborted attempts must roll back")
	assert.Equal(t, 3, rows[0].Value)
}

func TestRunDoesNotRetryOtherErrors(t *testing.T) {
	db := testdb.New(t, &counter{})
	runner := NewRunner(db, 3)

	attempts := 0
	boom := errors.New("boom")
	err := runner.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
