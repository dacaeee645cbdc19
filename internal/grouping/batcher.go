// Package grouping partitions subtitles into provider-sized groups.
package grouping

import (
	"sync"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Batcher collects subtitles in arrival order and partitions them into groups.
// A running group grows while every limit still holds with the next subtitle
// added; otherwise the next subtitle opens a new group. A subtitle larger than
// a limit on its own becomes a singleton group. Safe for concurrent use.
type Batcher struct {
	mu     sync.Mutex
	limits []Limit
	texts  []domain.SubtitleText
	index  map[domain.SubtitleText]int

	groups []domain.Group
	dirty  bool
}

// NewBatcher creates a batcher bounded by the given limits.
// With no limits every subtitle lands in a single group.
func NewBatcher(limits ...Limit) *Batcher {
	return &Batcher{
		limits: limits,
		index:  make(map[domain.SubtitleText]int),
	}
}

// AddSubtitle appends text if it is new. Returns false for empty or duplicate text.
func (b *Batcher) AddSubtitle(raw string) bool {
	text, ok := domain.NormalizeSubtitle(raw)
	if !ok {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.index[text]; exists {
		return false
	}
	b.index[text] = len(b.texts)
	b.texts = append(b.texts, text)
	b.dirty = true
	return true
}

// Len returns the number of unique subtitles collected.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.texts)
}

// Groups returns the current partition. The result is identical for identical
// AddSubtitle sequences.
func (b *Batcher) Groups() []domain.Group {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.regroup()
	out := make([]domain.Group, len(b.groups))
	copy(out, b.groups)
	return out
}

func (b *Batcher) regroup() {
	if !b.dirty && b.groups != nil {
		return
	}
	b.groups = Partition(b.texts, b.limits...)
	b.dirty = false
}

// Partition splits texts into ordered groups bounded by limits.
func Partition(texts []domain.SubtitleText, limits ...Limit) []domain.Group {
	groups := make([]domain.Group, 0)
	if len(texts) == 0 {
		return groups
	}

	sizes := make([]int, len(limits))
	var current []domain.SubtitleText

	flush := func() {
		groups = append(groups, domain.Group{Index: len(groups), Subtitles: current})
		current = nil
		clear(sizes)
	}

	for _, text := range texts {
		if len(current) > 0 && !fits(limits, sizes, string(text)) {
			flush()
		}
		for i, l := range limits {
			if len(current) > 0 {
				sizes[i] += separator
			}
			sizes[i] += l.Measure(string(text))
		}
		current = append(current, text)
	}
	flush()

	return groups
}

func fits(limits []Limit, sizes []int, next string) bool {
	for i, l := range limits {
		if sizes[i]+separator+l.Measure(next) > l.Max {
			return false
		}
	}
	return true
}
