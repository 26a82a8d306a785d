package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorUsesTemplate(t *testing.T) {
	err := NewError(ErrNameTaken)

	assert.Equal(t, ErrNameTaken, err.Code)
	assert.Equal(t, "This name is already taken.", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestNewErrorDefaultsStatusToOK(t *testing.T) {
	err := NewError(ErrMessageBlocked)
	assert.Equal(t, http.StatusOK, err.Status)
}

func TestNewErrorUnknownCode(t *testing.T) {
	err := NewError(987654)
	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", NewError(ErrNameTaken))

	assert.True(t, errors.Is(wrapped, NewError(ErrNameTaken)))
	assert.False(t, errors.Is(wrapped, NewError(ErrLookupFailed)))
	assert.True(t, HasCode(wrapped, ErrNameTaken))
	assert.False(t, HasCode(errors.New("plain"), ErrNameTaken))
}

func TestFromCodeKeepsServerMessage(t *testing.T) {
	err := FromCode(ErrStorageFailed, "insert failed")
	assert.Equal(t, ErrStorageFailed, err.Code)
	assert.Equal(t, "insert failed", err.Message)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)

	unknown := FromCode(42, "")
	assert.Equal(t, ErrUnknown, unknown.Code)
	assert.NotEmpty(t, unknown.Message)
}
