package ichimoe

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/morph"
)

// ParseHTML extracts morpheme forms from an ichi.moe result page.
//
// Each div.gloss yields one form. The first dt is the surface form. A
// dl.compounds splits it into its direct dt children, whose dd siblings
// hold the component base forms. A dl.alternatives carries the base form in
// its first dd. Missing pieces degrade to the surface form; glosses without
// a surface form are skipped.
func ParseHTML(r io.Reader, dontSplit morph.DoNotSplit) ([]domain.MorphemeForm, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	forms := make([]domain.MorphemeForm, 0)
	doc.Find("div.gloss").Each(func(_ int, gloss *goquery.Selection) {
		if f, ok := parseGloss(gloss, dontSplit); ok {
			forms = append(forms, f)
		}
	})
	return forms, nil
}

func parseGloss(gloss *goquery.Selection, dontSplit morph.DoNotSplit) (domain.MorphemeForm, bool) {
	surface := morph.Clean(text(gloss.Find("dt").First()))
	if surface == "" {
		return domain.MorphemeForm{}, false
	}
	if dontSplit.Contains(surface) {
		return domain.SimpleForm(surface, surface), true
	}

	if compounds := gloss.Find("dl.compounds").First(); compounds.Length() > 0 {
		return parseCompound(surface, compounds, dontSplit), true
	}

	if alternatives := gloss.Find("dl.alternatives").First(); alternatives.Length() > 0 {
		base := morph.Clean(text(alternatives.Find("dd").First().Find("dt").First()))
		if base == "" {
			base = surface
		}
		return domain.SimpleForm(surface, base), true
	}

	return domain.SimpleForm(surface, surface), true
}

func parseCompound(surface string, compounds *goquery.Selection, dontSplit morph.DoNotSplit) domain.MorphemeForm {
	var parts []string
	compounds.ChildrenFiltered("dt").Each(func(_ int, dt *goquery.Selection) {
		parts = append(parts, morph.Clean(text(dt)))
	})

	for _, p := range parts {
		if dontSplit.Contains(p) {
			return domain.SimpleForm(surface, surface)
		}
	}
	if len(parts) < 2 {
		return domain.SimpleForm(surface, surface)
	}

	bases := make([]string, len(parts))
	copy(bases, parts)
	compounds.ChildrenFiltered("dd").Each(func(i int, dd *goquery.Selection) {
		if i >= len(bases) {
			return
		}
		if base := morph.Clean(text(dd.Find("dt").First())); base != "" {
			bases[i] = base
		}
	})

	return domain.CompoundForm(surface, parts, bases)
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
