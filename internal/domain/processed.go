package domain

import (
	"strings"
)

// Segment is one rendered run of a processed subtitle.
// State is empty for plain or unparsed text. Span is the index into
// ProcessedSubtitle.Vocabulary of the span the segment belongs to, or -1.
type Segment struct {
	Text     string           `json:"text"`
	Position int              `json:"position"`
	Length   int              `json:"length"`
	State    string           `json:"state,omitempty"`
	Entry    *VocabularyEntry `json:"entry,omitempty"`
	Span     int              `json:"span"`
	BaseForm string           `json:"base_form,omitempty"`
}

// Plain reports whether the segment carries no annotation.
func (s Segment) Plain() bool {
	return s.Entry == nil && s.State == ""
}

// ProcessedSubtitle is the merge result for one subtitle line.
// Vocabulary is sorted by position and non-overlapping. Segments concatenate
// to OriginalText exactly.
type ProcessedSubtitle struct {
	OriginalText string        `json:"original_text"`
	Vocabulary   []PlacedEntry `json:"vocabulary"`
	Segments     []Segment     `json:"segments"`
	Morphemes    []Morpheme    `json:"morphemes,omitempty"`
}

// Text reassembles the segments.
func (p ProcessedSubtitle) Text() string {
	var sb strings.Builder
	for _, s := range p.Segments {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// VocabularyIDs returns the distinct vids present, in span order.
func (p ProcessedSubtitle) VocabularyIDs() []int {
	seen := make(map[int]struct{}, len(p.Vocabulary))
	ids := make([]int, 0, len(p.Vocabulary))
	for _, v := range p.Vocabulary {
		if _, ok := seen[v.VID]; ok {
			continue
		}
		seen[v.VID] = struct{}{}
		ids = append(ids, v.VID)
	}
	return ids
}

// SpanSegments returns the segments belonging to vocabulary span i.
func (p ProcessedSubtitle) SpanSegments(i int) []Segment {
	var out []Segment
	for _, s := range p.Segments {
		if s.Span == i {
			out = append(out, s)
		}
	}
	return out
}
