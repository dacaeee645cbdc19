package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUpstreamUnavailable, http.StatusBadGateway},
		{CodeMalformed, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestCode_Retryable(t *testing.T) {
	assert.True(t, CodeRateLimited.Retryable())
	assert.True(t, CodeUpstreamUnavailable.Retryable())
	assert.True(t, CodeMalformed.Retryable())
	assert.False(t, CodeUnauthenticated.Retryable())
	assert.False(t, CodeValidation.Retryable())
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := Unauthenticated("jpdb api key rejected")

	assert.True(t, Is(err, ErrUnauthenticated))
	assert.False(t, Is(err, ErrRateLimited))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, CodeUpstreamUnavailable, "parser request failed")

	assert.Equal(t, "parser request failed: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, ErrUpstreamUnavailable))
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("invalid grade")
	detailed := base.WithDetails(map[string]string{"grade": "must be one of good, hard"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("group 3: %w", RateLimited("slow down"))

	assert.Equal(t, CodeRateLimited, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
}
