// Package kagome is an offline morphological parser backed by the kagome
// tokenizer and the IPA dictionary.
package kagome

import (
	"context"
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/morph"
)

// IPA part-of-speech labels.
const (
	posVerb        = "動詞"
	posAdjective   = "形容詞"
	posAuxiliary   = "助動詞"
	posParticle    = "助詞"
	posSymbol      = "記号"
	subConjunctive = "接続助詞"
	subDependent   = "非自立"
	subSuffix      = "接尾"
)

// Parser segments text locally. Verbs and adjectives absorb the auxiliaries,
// conjunctive particles and dependent verbs that follow them, so 食べ|て|いる
// comes back as one compound form.
type Parser struct {
	tok       *tokenizer.Tokenizer
	dontSplit morph.DoNotSplit
}

var _ morph.Parser = (*Parser)(nil)

// New loads the dictionary and builds the tokenizer.
func New(doNotSplit []string) (*Parser, error) {
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	if doNotSplit == nil {
		doNotSplit = morph.DefaultDoNotSplit
	}
	return &Parser{tok: tok, dontSplit: morph.NewDoNotSplit(doNotSplit...)}, nil
}

// Name identifies the backend.
func (p *Parser) Name() string {
	return "kagome"
}

// Parse tokenizes groupText. It never blocks on I/O; ctx is checked once.
func (p *Parser) Parse(ctx context.Context, groupText string) ([]domain.MorphemeForm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		forms []domain.MorphemeForm
		run   []tokenizer.Token
	)
	flush := func() {
		if len(run) > 0 {
			forms = append(forms, foldRun(run))
			run = nil
		}
	}

	for _, t := range p.tok.Tokenize(groupText) {
		if strings.TrimSpace(t.Surface) == "" {
			flush()
			continue
		}
		pos := t.POS()
		switch {
		case head(pos) == posSymbol:
			flush()
			forms = append(forms, domain.UnparsedForm(t.Surface))
		case len(run) > 0 && attaches(pos):
			run = append(run, t)
		case isInflectingHead(pos):
			flush()
			run = append(run, t)
		default:
			flush()
			forms = append(forms, domain.SimpleForm(t.Surface, baseForm(t)))
		}
	}
	flush()

	return p.dontSplit.Apply(forms), nil
}

func foldRun(run []tokenizer.Token) domain.MorphemeForm {
	if len(run) == 1 {
		return domain.SimpleForm(run[0].Surface, baseForm(run[0]))
	}
	parts := make([]string, len(run))
	bases := make([]string, len(run))
	var surface strings.Builder
	for i, t := range run {
		parts[i] = t.Surface
		bases[i] = baseForm(t)
		surface.WriteString(t.Surface)
	}
	return domain.CompoundForm(surface.String(), parts, bases)
}

func baseForm(t tokenizer.Token) string {
	if base, ok := t.BaseForm(); ok && base != "" && base != "*" {
		return base
	}
	return t.Surface
}

func head(pos []string) string {
	if len(pos) == 0 {
		return ""
	}
	return pos[0]
}

func sub(pos []string) string {
	if len(pos) < 2 {
		return ""
	}
	return pos[1]
}

func isInflectingHead(pos []string) bool {
	h := head(pos)
	return h == posVerb || h == posAdjective
}

// attaches reports whether a token continues the preceding inflected word.
func attaches(pos []string) bool {
	switch head(pos) {
	case posAuxiliary:
		return true
	case posParticle:
		return sub(pos) == subConjunctive
	case posVerb, posAdjective:
		s := sub(pos)
		return s == subDependent || s == subSuffix
	default:
		return false
	}
}
