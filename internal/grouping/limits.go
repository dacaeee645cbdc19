package grouping

import (
	"fmt"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Unit is how a provider measures payload size.
type Unit int

const (
	// UnitChars counts UTF-16 code units of the space-joined group.
	UnitChars Unit = iota
	// UnitBytes counts UTF-8 bytes of the space-joined group.
	UnitBytes
)

func (u Unit) String() string {
	switch u {
	case UnitChars:
		return "chars"
	case UnitBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Limit caps the size of a group in one unit.
type Limit struct {
	Unit Unit
	Max  int
}

func (l Limit) String() string {
	return fmt.Sprintf("%d %s", l.Max, l.Unit)
}

// Measure returns the size of a single text in the limit's unit.
func (l Limit) Measure(text string) int {
	if l.Unit == UnitBytes {
		return len(text)
	}
	return domain.UnitLen(text)
}

// separator is the single space between members, one unit in both schemes.
const separator = 1

// Size returns the size of texts joined by single spaces.
func (l Limit) Size(texts ...string) int {
	if len(texts) == 0 {
		return 0
	}
	size := (len(texts) - 1) * separator
	for _, t := range texts {
		size += l.Measure(t)
	}
	return size
}
