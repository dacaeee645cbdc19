package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, map[string]string{"status": "ok"}, logger.Discard().Logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	env := decode[map[string]any](t, w)
	assert.Equal(t, float64(Version), env["v"])
	assert.Equal(t, true, env["success"])
	assert.Equal(t, map[string]any{"status": "ok"}, env["data"])
	assert.NotContains(t, env, "error")
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "not found",
			err:        domainerrors.NotFound("session not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "session not found",
		},
		{
			name:       "wrapped unauthenticated",
			err:        domainerrors.Wrap(errors.New("401"), domainerrors.CodeUnauthenticated, "vocabulary api key was rejected"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHENTICATED",
			wantMsg:    "vocabulary api key was rejected",
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("badger: disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, tt.err, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode[ErrorEnvelope](t, w)
			assert.Equal(t, Version, env.Version)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, domainerrors.ValidationWithDetails("validation failed", map[string]string{"key": "is required"}), nil)

	env := decode[map[string]any](t, w)
	assert.Equal(t, map[string]any{"key": "is required"}, env["details"])
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, "slow down", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode[ErrorEnvelope](t, w).Code)
}
