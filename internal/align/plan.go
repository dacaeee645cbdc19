package align

import (
	"fmt"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Plan holds the claimed morphemes of one group and the texts to look up.
type Plan struct {
	Group     domain.Group
	Basis     Basis
	Morphemes [][]domain.Morpheme
	// Texts are sent to the vocabulary provider, one per subtitle.
	Texts []string

	refs [][]LemmaRef
}

// NewPlan claims forms for every subtitle of group.
func NewPlan(group domain.Group, forms []domain.MorphemeForm, basis Basis) *Plan {
	sorted := SortForms(forms)
	p := &Plan{
		Group:     group,
		Basis:     basis,
		Morphemes: make([][]domain.Morpheme, len(group.Subtitles)),
		Texts:     make([]string, len(group.Subtitles)),
	}
	if basis == BasisLemma {
		p.refs = make([][]LemmaRef, len(group.Subtitles))
	}

	for i, sub := range group.Subtitles {
		text := string(sub)
		p.Morphemes[i] = Claim(text, sorted)
		if basis == BasisLemma {
			p.Texts[i], p.refs[i] = LemmaText(p.Morphemes[i])
		} else {
			p.Texts[i] = text
		}
	}
	return p
}

// Merge validates a lookup result and merges it into one processed subtitle
// per group member. Any error leaves nothing usable for the whole group.
func (p *Plan) Merge(tokens [][]domain.VocabularyToken, vocabulary []domain.VocabularyEntry) ([]domain.ProcessedSubtitle, error) {
	if err := Validate(p.Texts, tokens, vocabulary); err != nil {
		return nil, err
	}

	out := make([]domain.ProcessedSubtitle, len(p.Group.Subtitles))
	for i, sub := range p.Group.Subtitles {
		toks := tokens[i]
		if p.refs != nil {
			toks = Project(toks, p.refs[i])
		}
		processed, err := Merge(string(sub), p.Morphemes[i], toks, vocabulary)
		if err != nil {
			return nil, fmt.Errorf("subtitle %d: %w", i, err)
		}
		out[i] = processed
	}
	return out, nil
}
