// Package dom models a browser page as golang.org/x/net/html trees.
//
// A Window owns a Document and the frames embedded in it. Declarative shadow
// roots (<template shadowrootmode="open">) are exposed as separate query
// scopes. Every change made through Document.Update is reported to
// subscribers as mutation records, which is what the subtitle observer
// consumes.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/html"
)

// Document is a mutable HTML tree guarded by a read/write lock.
// Nodes must only be read inside View and changed inside Update.
type Document struct {
	mu   sync.RWMutex
	root *html.Node

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root, subs: make(map[*Subscription]struct{})}
}

// ParseDocument parses r into a Document.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(root), nil
}

// View runs fn with the tree locked for reading.
func (d *Document) View(fn func(root *html.Node) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(d.root)
}

// Update runs fn with the tree locked for writing. Records collected by the
// transaction are delivered to subscribers after the lock is released, even
// when fn returns an error part way through.
func (d *Document) Update(fn func(tx *Tx) error) error {
	tx := &Tx{doc: d}

	d.mu.Lock()
	err := fn(tx)
	d.mu.Unlock()

	d.publish(tx.records...)
	return err
}

// Contains reports whether n is attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return attached(d.root, n)
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, for tests and logs.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// SignalPreloadComplete reports that the offscreen container has finished
// loading subtitles.
func (d *Document) SignalPreloadComplete(container *html.Node) {
	d.publish(MutationRecord{Type: MutationPreloadComplete, Target: container})
}

// Replace swaps the whole tree, as a navigation or a fresh snapshot would.
func (d *Document) Replace(root *html.Node) {
	d.mu.Lock()
	d.root = root
	d.mu.Unlock()
	d.publish(MutationRecord{Type: MutationChildList, Target: root, Added: []*html.Node{root}})
}
