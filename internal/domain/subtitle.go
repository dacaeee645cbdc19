package domain

import (
	"strings"
)

// SubtitleText is a trimmed subtitle line. It is the natural key for caching and alignment.
type SubtitleText string

// NormalizeSubtitle trims surrounding whitespace.
// Returns false when nothing remains, so empty lines never reach the pipeline.
func NormalizeSubtitle(raw string) (SubtitleText, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return SubtitleText(trimmed), true
}

// String returns the text.
func (s SubtitleText) String() string {
	return string(s)
}

// Group is an ordered batch of subtitles sent to the providers in one round-trip.
type Group struct {
	Index     int            `json:"index"`
	Subtitles []SubtitleText `json:"subtitles"`
}

// Text joins the members with a single space. This is the parser payload.
func (g Group) Text() string {
	return strings.Join(g.Strings(), " ")
}

// Strings returns the members as plain strings.
func (g Group) Strings() []string {
	out := make([]string, len(g.Subtitles))
	for i, s := range g.Subtitles {
		out[i] = string(s)
	}
	return out
}

// Key identifies the group's content. Two groups with the same members share a key.
func (g Group) Key() string {
	return strings.Join(g.Strings(), "\x1f")
}

// Contains reports whether text is a member of the group.
func (g Group) Contains(text SubtitleText) bool {
	for _, s := range g.Subtitles {
		if s == text {
			return true
		}
	}
	return false
}
