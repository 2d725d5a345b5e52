package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDuplicate_Message(t *testing.T) {
	err := NewDuplicate("Manufacturer", "name", "Tesla")

	assert.Equal(t, `Manufacturer with name "Tesla" already exists`, err.Message)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.Equal(t, "Tesla", err.Details["value"])
	assert.True(t, IsDuplicate(err))
}

func TestAsAppError_Wrapped(t *testing.T) {
	base := NewValidation("Country code must be a 2-letter uppercase ISO code")
	wrapped := fmt.Errorf("create manufacturer: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(wrapped))
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "Internal server error", err.Message)
}

func TestNotFound_Details(t *testing.T) {
	err := NewNotFound("Manufacturer", "abc")

	assert.Equal(t, "Manufacturer not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.True(t, IsNotFound(err))
}
