package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// MutationType classifies a mutation record.
type MutationType int

const (
	MutationChildList MutationType = iota
	MutationCharacterData
	MutationAttributes
	// MutationPreloadComplete is an explicit signal from the page that the
	// offscreen subtitle buffer is fully populated.
	MutationPreloadComplete
)

func (t MutationType) String() string {
	switch t {
	case MutationChildList:
		return "childList"
	case MutationCharacterData:
		return "characterData"
	case MutationAttributes:
		return "attributes"
	case MutationPreloadComplete:
		return "preloadComplete"
	default:
		return "unknown"
	}
}

// MutationRecord describes one change.
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	Added         []*html.Node
	AttributeName string
}

// Subscription is an unbounded queue of mutation records. Publishing never
// blocks, so a subscriber may itself mutate the document while handling records.
type Subscription struct {
	doc    *Document
	mu     sync.Mutex
	queue  []MutationRecord
	signal chan struct{}
	closed bool
}

// Subscribe registers a new subscription.
func (d *Document) Subscribe() *Subscription {
	s := &Subscription{doc: d, signal: make(chan struct{}, 1)}
	d.subsMu.Lock()
	d.subs[s] = struct{}{}
	d.subsMu.Unlock()
	return s
}

// Ready is signaled whenever records are waiting.
func (s *Subscription) Ready() <-chan struct{} {
	return s.signal
}

// Drain returns and clears the pending records.
func (s *Subscription) Drain() []MutationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.doc.subsMu.Lock()
	delete(s.doc.subs, s)
	s.doc.subsMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

func (s *Subscription) push(records []MutationRecord) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, records...)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (d *Document) publish(records ...MutationRecord) {
	if len(records) == 0 {
		return
	}
	d.subsMu.Lock()
	subs := make([]*Subscription, 0, len(d.subs))
	for s := range d.subs {
		subs = append(subs, s)
	}
	d.subsMu.Unlock()

	for _, s := range subs {
		s.push(records)
	}
}
