package align

import (
	"cmp"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Merge overlays vocabulary tokens on the morphemes claimed for text.
//
// Tokens are sorted by position and clipped so spans stay disjoint and inside
// text. Text outside every span becomes a plain segment. Inside a span, each
// overlapping morpheme part is clipped to the span and emitted as its own
// segment, so no segment crosses a span boundary. A piece takes the state of
// the entry whose spelling equals its base form, and otherwise the state of
// the span's own entry. Unparsed parts stay plain.
func Merge(text string, morphemes []domain.Morpheme, tokens []domain.VocabularyToken, vocabulary []domain.VocabularyEntry) (domain.ProcessedSubtitle, error) {
	spans, err := placeSpans(text, tokens, vocabulary)
	if err != nil {
		return domain.ProcessedSubtitle{}, err
	}

	result := domain.ProcessedSubtitle{
		OriginalText: text,
		Vocabulary:   spans,
		Morphemes:    morphemes,
	}

	candidates := tokenEntries(tokens, vocabulary)
	cursor := 0
	for i, span := range spans {
		if span.Position > cursor {
			result.Segments = append(result.Segments, gap(text, cursor, span.Position))
		}
		result.Segments = append(result.Segments, spanSegments(text, i, spans, candidates, morphemes)...)
		cursor = span.End()
	}
	if n := domain.UnitLen(text); cursor < n {
		result.Segments = append(result.Segments, gap(text, cursor, n))
	}

	return result, nil
}

// placeSpans resolves tokens into disjoint entries sorted by position.
// Ties on position favor the longer token. Bounds that fall inside a
// surrogate pair snap back to the start of that code point, and spans left
// empty are dropped.
func placeSpans(text string, tokens []domain.VocabularyToken, vocabulary []domain.VocabularyEntry) ([]domain.PlacedEntry, error) {
	for _, tok := range tokens {
		if tok.VocabularyIndex < 0 || tok.VocabularyIndex >= len(vocabulary) {
			return nil, malformed("vocabulary index %d out of range [0,%d)", tok.VocabularyIndex, len(vocabulary))
		}
	}

	sorted := slices.Clone(tokens)
	slices.SortStableFunc(sorted, func(a, b domain.VocabularyToken) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(b.Length, a.Length)
	})

	n := domain.UnitLen(text)
	spans := make([]domain.PlacedEntry, 0, len(sorted))
	prevEnd := 0
	for _, tok := range sorted {
		start := domain.SnapUnit(text, max(tok.Position, prevEnd, 0))
		end := domain.SnapUnit(text, min(tok.End(), n))
		if end <= start {
			continue
		}
		spans = append(spans, domain.PlacedEntry{
			VocabularyEntry: vocabulary[tok.VocabularyIndex],
			Position:        start,
			Length:          end - start,
		})
		prevEnd = end
	}
	return spans, nil
}

// tokenEntries collects the entries referenced by tokens, including tokens
// that were clipped away, in token order.
func tokenEntries(tokens []domain.VocabularyToken, vocabulary []domain.VocabularyEntry) []domain.VocabularyEntry {
	seen := make(map[int]struct{}, len(tokens))
	out := make([]domain.VocabularyEntry, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok.VocabularyIndex]; ok {
			continue
		}
		seen[tok.VocabularyIndex] = struct{}{}
		out = append(out, vocabulary[tok.VocabularyIndex])
	}
	return out
}

func gap(text string, start, end int) domain.Segment {
	return domain.Segment{
		Text:     domain.SliceUnits(text, start, end),
		Position: start,
		Length:   end - start,
		Span:     -1,
	}
}

// spanSegments clips every morpheme part overlapping span i.
// Stretches of the span no part covers take the span's entry.
func spanSegments(text string, i int, spans []domain.PlacedEntry, candidates []domain.VocabularyEntry, morphemes []domain.Morpheme) []domain.Segment {
	span := spans[i]
	spanEntry := &spans[i].VocabularyEntry

	var out []domain.Segment
	cursor := span.Position

	emit := func(start, end int, part *domain.MorphemePart) {
		seg := domain.Segment{
			Text:     domain.SliceUnits(text, start, end),
			Position: start,
			Length:   end - start,
			Span:     i,
		}
		switch {
		case part == nil:
			seg.Entry = spanEntry
			seg.State = spanEntry.State()
		case part.Parsed:
			entry := matchEntry(part.BaseForm, spanEntry, candidates)
			seg.Entry = entry
			seg.State = entry.State()
			seg.BaseForm = part.BaseForm
		}
		out = append(out, seg)
	}

	for _, m := range morphemes {
		if m.End() <= span.Position || m.Position >= span.End() {
			continue
		}
		for pi := range m.Parts {
			part := &m.Parts[pi]
			start := max(part.Position, span.Position, cursor)
			end := min(part.End(), span.End())
			if end <= start {
				continue
			}
			if start > cursor {
				emit(cursor, start, nil)
			}
			emit(start, end, part)
			cursor = end
		}
	}
	if cursor < span.End() {
		emit(cursor, span.End(), nil)
	}

	return out
}

// matchEntry prefers an exact spelling match for base, starting with the
// span's own entry, then any entry the subtitle's tokens reference. Without
// an exact match the span's entry is used.
func matchEntry(base string, spanEntry *domain.VocabularyEntry, candidates []domain.VocabularyEntry) *domain.VocabularyEntry {
	if base == "" {
		return spanEntry
	}
	want := norm.NFC.String(base)
	if norm.NFC.String(spanEntry.Spelling) == want {
		return spanEntry
	}
	for i := range candidates {
		if norm.NFC.String(candidates[i].Spelling) == want {
			return &candidates[i]
		}
	}
	return spanEntry
}
