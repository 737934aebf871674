package utils

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeUnwrapsAppError(t *testing.T) {
	base := NewAppError(ErrCodeDatabase, "Failed to fetch logs", "connection reset")
	wrapped := fmt.Errorf("list logs: %w", base)

	assert.Equal(t, ErrCodeDatabase, ErrorCode(wrapped))
	assert.Equal(t, "DATABASE_ERROR: Failed to fetch logs (connection reset)", base.Error())
	assert.Equal(t, ErrCodeInternal, ErrorCode(fmt.Errorf("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]int{
		ErrCodeValidation:     http.StatusBadRequest,
		ErrCodeUnauthorized:   http.StatusUnauthorized,
		ErrCodeNotFound:       http.StatusNotFound,
		ErrCodeConfiguration:  http.StatusServiceUnavailable,
		ErrCodeExternal:       http.StatusBadGateway,
		ErrCodeConnection:     http.StatusBadGateway,
		ErrCodeNotImplemented: http.StatusNotImplemented,
		ErrCodeDatabase:       http.StatusInternalServerError,
		ErrCodeUpload:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), code)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValidID(a))
	assert.False(t, IsValidID("not-a-uuid"))
	assert.False(t, IsValidID("urn:uuid:"+a))
}
