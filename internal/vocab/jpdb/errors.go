package jpdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for jpdb operations.
var (
	ErrMissingCredential = errors.New("jpdb: API key not set")
	ErrUnauthorized      = errors.New("jpdb: API key invalid or expired")
	ErrRateLimited       = errors.New("jpdb: rate limited by server")
	ErrServer            = errors.New("jpdb: server error")
	ErrMalformed         = errors.New("jpdb: malformed response")
	ErrInvalidGrade      = errors.New("jpdb: unknown review grade")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op      string // Operation: "parse", "add-vocabulary", "review", ...
	Status  int    // HTTP status, if a response was received
	Message string // error_message from the response body, if any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("jpdb %s: %v: %s", e.Op, e.Err, e.Message)
	}
	return fmt.Sprintf("jpdb %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error) error {
	var existing *Error
	if errors.As(err, &existing) {
		existing.Op = op
		return existing
	}
	return &Error{Op: op, Err: err}
}

// IsAuth reports whether err needs the user to fix their credential.
func IsAuth(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrUnauthorized)
}

// IsRateLimited reports whether err is a 429 from jpdb.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
