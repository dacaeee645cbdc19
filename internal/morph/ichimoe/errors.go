package ichimoe

import (
	"errors"
	"fmt"
)

// Sentinel errors for ichi.moe requests.
var (
	ErrRateLimited = errors.New("ichimoe: rate limited by server")
	ErrBadRequest  = errors.New("ichimoe: bad request")
	ErrServer      = errors.New("ichimoe: server error")
	ErrUnavailable = errors.New("ichimoe: circuit open")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // Operation: "parse"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ichimoe %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error) error {
	return &Error{Op: op, Err: err}
}
