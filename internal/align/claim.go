// Package align reconciles a morphological segmentation with vocabulary tokens.
//
// The parser segments a whole group of subtitles; the vocabulary provider
// reports spans per original subtitle. Claim assigns parser forms to one
// subtitle, and Merge overlays the vocabulary spans on top of the claimed
// morphemes to produce the rendered segments.
package align

import (
	"cmp"
	"slices"
	"strings"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// SortForms returns the forms ordered by descending surface length.
// Forms with equal length keep parser order, and forms with an empty
// surface are dropped. Call once per group.
func SortForms(forms []domain.MorphemeForm) []domain.MorphemeForm {
	sorted := make([]domain.MorphemeForm, 0, len(forms))
	for _, f := range forms {
		if f.SurfaceForm != "" {
			sorted = append(sorted, f)
		}
	}
	slices.SortStableFunc(sorted, func(a, b domain.MorphemeForm) int {
		return cmp.Compare(domain.UnitLen(b.SurfaceForm), domain.UnitLen(a.SurfaceForm))
	})
	return sorted
}

// Claim partitions text into morphemes by greedily taking the longest sorted
// form that prefixes the remaining text. Where nothing matches, a single code
// point is claimed as unparsed. The result covers text with no gaps or overlaps.
func Claim(text string, sorted []domain.MorphemeForm) []domain.Morpheme {
	var out []domain.Morpheme
	rest := text
	pos := 0

	for rest != "" {
		form, ok := longestPrefix(rest, sorted)
		if !ok {
			ch, width := domain.FirstRune(rest)
			out = append(out, unparsedMorpheme(ch, pos, width))
			rest = rest[len(ch):]
			pos += width
			continue
		}

		m := claimForm(form, pos)
		out = append(out, m)
		rest = rest[len(form.SurfaceForm):]
		pos += m.Length
	}

	return out
}

func longestPrefix(rest string, sorted []domain.MorphemeForm) (domain.MorphemeForm, bool) {
	for _, f := range sorted {
		if strings.HasPrefix(rest, f.SurfaceForm) {
			return f, true
		}
	}
	return domain.MorphemeForm{}, false
}

func unparsedMorpheme(text string, pos, length int) domain.Morpheme {
	return domain.Morpheme{
		Text:     text,
		Position: pos,
		Length:   length,
		Parts:    []domain.MorphemePart{{Text: text, Position: pos, Length: length}},
	}
}

func claimForm(f domain.MorphemeForm, pos int) domain.Morpheme {
	length := domain.UnitLen(f.SurfaceForm)
	m := domain.Morpheme{
		Text:     f.SurfaceForm,
		Position: pos,
		Length:   length,
		Parsed:   f.Parsed,
		Compound: f.Compound,
	}

	if !f.Parsed {
		m.Parts = []domain.MorphemePart{{Text: f.SurfaceForm, Position: pos, Length: length}}
		return m
	}

	if f.Compound && partsCover(f) {
		offset := pos
		for i, part := range f.SeparatedForm {
			n := domain.UnitLen(part)
			m.Parts = append(m.Parts, domain.MorphemePart{
				Text:     part,
				Position: offset,
				Length:   n,
				BaseForm: f.Base(i),
				Parsed:   true,
			})
			offset += n
		}
		return m
	}

	// Components that do not tile the surface collapse into one unit.
	m.Compound = false
	m.Parts = []domain.MorphemePart{{
		Text:     f.SurfaceForm,
		Position: pos,
		Length:   length,
		BaseForm: f.Base(0),
		Parsed:   true,
	}}
	return m
}

func partsCover(f domain.MorphemeForm) bool {
	return len(f.SeparatedForm) > 1 && strings.Join(f.SeparatedForm, "") == f.SurfaceForm
}
