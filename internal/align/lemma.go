package align

import (
	"strings"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Basis selects which text of a subtitle is sent to the vocabulary provider.
type Basis string

const (
	// BasisSurface looks up the original subtitle text.
	BasisSurface Basis = "surface"
	// BasisLemma looks up the space-joined base forms of the claimed morphemes.
	BasisLemma Basis = "lemma"
)

// LemmaRef maps a range of the lemma text back to the original subtitle.
type LemmaRef struct {
	LemmaStart int
	LemmaEnd   int
	Position   int
	Length     int
}

// LemmaText joins the base forms of every parsed morpheme part with single
// spaces. Unparsed parts are left out. The refs record where each base form
// came from in the original text.
func LemmaText(morphemes []domain.Morpheme) (string, []LemmaRef) {
	var sb strings.Builder
	var refs []LemmaRef
	offset := 0

	for _, m := range morphemes {
		for _, p := range m.Parts {
			if !p.Parsed || p.BaseForm == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
				offset++
			}
			n := domain.UnitLen(p.BaseForm)
			sb.WriteString(p.BaseForm)
			refs = append(refs, LemmaRef{
				LemmaStart: offset,
				LemmaEnd:   offset + n,
				Position:   p.Position,
				Length:     p.Length,
			})
			offset += n
		}
	}

	return sb.String(), refs
}

// Project maps tokens over a lemma text onto the original subtitle. A token
// covers every original part whose base form it touches. Tokens that touch
// no base form (the joining spaces) are dropped.
func Project(tokens []domain.VocabularyToken, refs []LemmaRef) []domain.VocabularyToken {
	out := make([]domain.VocabularyToken, 0, len(tokens))
	for _, tok := range tokens {
		start, end := -1, -1
		for _, r := range refs {
			if r.LemmaStart >= tok.End() || r.LemmaEnd <= tok.Position {
				continue
			}
			if start < 0 || r.Position < start {
				start = r.Position
			}
			if e := r.Position + r.Length; e > end {
				end = e
			}
		}
		if start < 0 || end <= start {
			continue
		}
		out = append(out, domain.VocabularyToken{
			VocabularyIndex: tok.VocabularyIndex,
			Position:        start,
			Length:          end - start,
		})
	}
	return out
}
