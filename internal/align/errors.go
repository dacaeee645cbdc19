package align

import (
	"errors"
	"fmt"
)

// ErrMalformed reports vocabulary data that cannot be merged: a token count that
// differs from the subtitle count, an empty vocabulary table, or a token that
// references a missing entry. Results built from such data are never cached.
var ErrMalformed = errors.New("align: malformed vocabulary data")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
