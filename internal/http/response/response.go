// Package response writes the API's JSON envelope from plain net/http
// handlers: middleware rejections and the event stream's error paths.
// Huma operations produce the same shapes through api.EnvelopeTransformer.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope wraps successful responses and plain error messages.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorEnvelope carries a coded error.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes body with status.
func JSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes data in a success envelope (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, Envelope{Version: Version, Success: true, Data: data}, logger)
}

// Error writes err as a coded error envelope. Domain errors keep their code
// and status; anything else becomes a 500 whose message is not exposed.
func Error(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		if logger != nil {
			logger.Error("Unhandled error", "error", err)
		}
		domainErr = domainerrors.Internal("internal server error")
	}

	JSON(w, domainErr.HTTPStatus(), ErrorEnvelope{
		Version: Version,
		Code:    string(domainErr.Code),
		Message: domainErr.Message,
		Details: domainErr.Details,
	}, logger)
}

// TooManyRequests writes a 429 rate limit response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	w.Header().Set("Retry-After", "1")
	Error(w, domainerrors.RateLimited(message), logger)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.NotFound(message), logger)
}
