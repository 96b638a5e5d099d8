package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("product %d not found", 1)))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("outer: %w", Conflict("dup"))))
	assert.Equal(t, KindEmptyCart, KindOf(ErrEmptyCart))
	assert.Equal(t, KindInvalidTransition, KindOf(InvalidTransition("DELIVERED", "PAID")))
	assert.Equal(t, KindInsufficientStock, KindOf(InsufficientStock(1, "Lamp", 0, 2)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Forbidden("no"), KindForbidden))
	assert.False(t, Is(Forbidden("no"), KindUnauthorized))
	assert.False(t, Is(nil, KindInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInvalidArgument, cause, "bad image")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad image: disk full", err.Error())
	assert.True(t, Is(err, KindInvalidArgument))
}

func TestInsufficientStockDetails(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock(9, "Desk", 1, 3))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, uint(9), stockErr.ProductID)
	assert.Equal(t, "Desk", stockErr.ProductName)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Contains(t, err.Error(), "available 1, requested 3")
}
