// Package morph defines the morphological parser contract and the text
// cleanup shared by parser backends.
package morph

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Parser segments a group's joined text into morpheme forms.
type Parser interface {
	Parse(ctx context.Context, groupText string) ([]domain.MorphemeForm, error)
	Name() string
}

var (
	bracketGloss = regexp.MustCompile(`【.*?】`)
	enumeration  = regexp.MustCompile(`^\d+\.\s*`)
)

// Clean strips bracketed glosses and a leading enumeration, trims and
// NFC-normalizes the result.
func Clean(s string) string {
	s = bracketGloss.ReplaceAllString(s, "")
	s = enumeration.ReplaceAllString(s, "")
	return norm.NFC.String(strings.TrimSpace(s))
}

// DefaultDoNotSplit holds expressions displayed as one unit even when the
// parser decomposes them (みたい is not 見る + たい).
var DefaultDoNotSplit = []string{"みたい"}

// DoNotSplit is a set of surface forms that must never be decomposed.
type DoNotSplit map[string]struct{}

// NewDoNotSplit builds the set from words, cleaning each.
func NewDoNotSplit(words ...string) DoNotSplit {
	set := make(DoNotSplit, len(words))
	for _, w := range words {
		if w = Clean(w); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Contains reports whether word is in the set.
func (d DoNotSplit) Contains(word string) bool {
	_, ok := d[Clean(word)]
	return ok
}

// Apply collapses any compound whose surface or component is in the set
// into a single form whose base is its surface.
func (d DoNotSplit) Apply(forms []domain.MorphemeForm) []domain.MorphemeForm {
	if len(d) == 0 {
		return forms
	}
	for i, f := range forms {
		if !f.Parsed {
			continue
		}
		if d.Contains(f.SurfaceForm) || (f.Compound && d.anyOf(f.SeparatedForm)) {
			forms[i] = domain.SimpleForm(f.SurfaceForm, f.SurfaceForm)
		}
	}
	return forms
}

func (d DoNotSplit) anyOf(parts []string) bool {
	for _, p := range parts {
		if d.Contains(p) {
			return true
		}
	}
	return false
}
