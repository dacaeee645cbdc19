package session

import (
	"context"
	"errors"

	"github.com/subtitlelens/subtitlelens-server/internal/align"
	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/morph/ichimoe"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// ErrEmptyParse is returned when the parser produced no forms for a group.
var ErrEmptyParse = errors.New("session: parser returned no forms")

// Classify translates an adapter error into a coded domain error. Context
// cancellation is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, jpdb.ErrMissingCredential):
		return domainerrors.Wrap(err, domainerrors.CodeUnauthenticated, "vocabulary api key is not set")
	case errors.Is(err, jpdb.ErrUnauthorized):
		return domainerrors.Wrap(err, domainerrors.CodeUnauthenticated, "vocabulary api key was rejected")
	case errors.Is(err, jpdb.ErrRateLimited), errors.Is(err, ichimoe.ErrRateLimited):
		return domainerrors.Wrap(err, domainerrors.CodeRateLimited, "provider rate limit reached")
	case errors.Is(err, jpdb.ErrMalformed), errors.Is(err, align.ErrMalformed),
		errors.Is(err, ErrEmptyParse), errors.Is(err, ichimoe.ErrBadRequest):
		return domainerrors.Wrap(err, domainerrors.CodeMalformed, "provider response could not be used")
	case errors.Is(err, jpdb.ErrServer), errors.Is(err, ichimoe.ErrServer), errors.Is(err, ichimoe.ErrUnavailable):
		return domainerrors.Wrap(err, domainerrors.CodeUpstreamUnavailable, "provider unavailable")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeUpstreamUnavailable, "provider request failed")
	}
}
