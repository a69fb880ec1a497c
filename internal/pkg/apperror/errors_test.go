package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("failed to add item: %w", NotFound("variant", uint(9)))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "failed to add item: variant not found", err.Error())

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, uint(9), nf.ID)
}

func TestValidationMessage(t *testing.T) {
	assert.Equal(t, "quantity: must be positive", Invalid("quantity", "must be positive").Error())
	assert.Equal(t, "bad input", Invalid("", "bad input").Error())
	assert.True(t, IsValidation(Invalid("x", "y")))
}

func TestConflictFormats(t *testing.T) {
	assert.Equal(t, "sku LPG-12 already exists", Conflict("sku %s already exists", "LPG-12").Error())
}
