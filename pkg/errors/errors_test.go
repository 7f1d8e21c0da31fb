package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, CodeOf(NotFound("lot", nil)))
	assert.Equal(t, ErrInsufficientStock, CodeOf(InsufficientStock(10, 4)))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain error")))
	assert.Equal(t, ErrInternal, CodeOf(nil))
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("checking shipment: %w", AlreadyRecalled("shipment"))
	assert.Equal(t, ErrAlreadyRecalled, CodeOf(err))
	assert.True(t, Is(err, ErrAlreadyRecalled))
	assert.False(t, Is(err, ErrConflict))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("pq: connection refused")
	err := Internal(cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "internal server error: pq: connection refused", err.Error())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "lot not found", NotFound("lot", nil).Error())
	assert.Equal(t,
		"insufficient stock: requested 10, available 4",
		InsufficientStock(10, 4).Error())
	assert.Equal(t, "treatment has already been recalled", AlreadyRecalled("treatment").Error())
}
