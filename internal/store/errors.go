package store

import (
	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
)

// Sentinel errors.
var (
	ErrNotFound   = domainerrors.NotFound("setting not found")
	ErrUnknownKey = domainerrors.Validation("unknown setting key")
)
