// Package cache stores processed subtitles keyed by their exact trimmed text.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// DefaultSize bounds a session cache when no size is configured.
const DefaultSize = 8192

// Cache is a bounded processed-result cache with a vocabulary index.
// The index maps each vid to the cached texts that contain it, so a change
// to one card can replace every affected subtitle.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[domain.SubtitleText, domain.ProcessedSubtitle]
	byVID map[int]map[domain.SubtitleText]struct{}
}

// New creates a cache holding at most size subtitles.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{byVID: make(map[int]map[domain.SubtitleText]struct{})}

	l, err := lru.NewWithEvict(size, c.unindex)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get returns the processed subtitle for text.
func (c *Cache) Get(text domain.SubtitleText) (domain.ProcessedSubtitle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(text)
}

// Has reports whether text is cached without touching recency.
func (c *Cache) Has(text domain.SubtitleText) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(text)
}

// Set stores value for text, replacing any previous result.
func (c *Cache) Set(text domain.SubtitleText, value domain.ProcessedSubtitle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(text); ok {
		c.unindex(text, old)
	}
	c.lru.Add(text, value)
	for _, vid := range value.VocabularyIDs() {
		texts, ok := c.byVID[vid]
		if !ok {
			texts = make(map[domain.SubtitleText]struct{})
			c.byVID[vid] = texts
		}
		texts[text] = struct{}{}
	}
}

// Len returns the number of cached subtitles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	clear(c.byVID)
}

// InvalidateVocabulary removes every cached subtitle containing vid and
// returns their texts so the caller can process them again.
func (c *Cache) InvalidateVocabulary(vid int) []domain.SubtitleText {
	c.mu.Lock()
	defer c.mu.Unlock()

	texts := c.byVID[vid]
	out := make([]domain.SubtitleText, 0, len(texts))
	for text := range texts {
		out = append(out, text)
	}
	for _, text := range out {
		c.lru.Remove(text)
	}
	delete(c.byVID, vid)
	return out
}

// unindex runs with c.mu held: every lru mutation happens under the lock and
// the eviction callback fires synchronously inside it.
func (c *Cache) unindex(text domain.SubtitleText, value domain.ProcessedSubtitle) {
	for _, vid := range value.VocabularyIDs() {
		texts := c.byVID[vid]
		delete(texts, text)
		if len(texts) == 0 {
			delete(c.byVID, vid)
		}
	}
}
