// Package render turns processed subtitles into annotation spans.
//
// The annotation span (class cr-subtitle) sits right after the original
// subtitle element. The original is hidden, never removed, so the player keeps
// driving it and a later render can find the annotation again.
package render

import (
	"bytes"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Class names used in rendered markup.
const (
	ClassAnnotation = "cr-subtitle"
	ClassHidden     = "hidden"
	ClassSegment    = "jpdb-segment"
	ClassWord       = "jpdb-word"
)

// ErrDetached is returned when the subtitle element left the document
// before it could be annotated.
var ErrDetached = errors.New("render: subtitle element is detached")

// Options configures a Renderer.
type Options struct {
	Palette Palette
	// InlineColors writes the palette color into each word's style attribute
	// for pages that do not load the stylesheet.
	InlineColors bool
}

// Renderer builds annotation markup.
type Renderer struct {
	opts Options

	mu      sync.RWMutex
	palette Palette
}

// New creates a renderer. A nil palette uses the defaults.
func New(opts Options) *Renderer {
	if opts.Palette == nil {
		opts.Palette = DefaultPalette()
	}
	return &Renderer{opts: opts, palette: opts.Palette}
}

// SetPalette replaces the palette used for inline colors. A nil palette
// restores the defaults.
func (r *Renderer) SetPalette(p Palette) {
	if p == nil {
		p = DefaultPalette()
	}
	r.mu.Lock()
	r.palette = p.Clone()
	r.mu.Unlock()
}

// Palette returns a copy of the current palette.
func (r *Renderer) Palette() Palette {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.palette.Clone()
}

// Render annotates el with processed. An existing annotation span right after
// el is reused and only rewritten when its content differs.
func (r *Renderer) Render(doc *dom.Document, el *html.Node, processed domain.ProcessedSubtitle) error {
	return doc.Update(func(tx *dom.Tx) error {
		if !tx.Attached(el) || el.Parent == nil {
			return ErrDetached
		}

		children := r.nodes(processed)
		if ann := annotationAfter(el); ann != nil {
			if !sameMarkup(ann, children) {
				tx.ReplaceChildren(ann, children...)
			}
		} else {
			ann := dom.Element("span", "class", ClassAnnotation)
			for _, c := range children {
				ann.AppendChild(c)
			}
			if err := tx.InsertAfter(el, ann); err != nil {
				return err
			}
		}

		tx.AddClass(el, ClassHidden)
		return nil
	})
}

// Apply renders processed and falls back to a plain-text annotation when the
// element can no longer be annotated. The render error is still returned.
func (r *Renderer) Apply(doc *dom.Document, el *html.Node, processed domain.ProcessedSubtitle) error {
	err := r.Render(doc, el, processed)
	if err != nil {
		r.Fallback(doc, el)
	}
	return err
}

// Fallback shows the element's raw text in an annotation span. It does
// nothing when el has no parent or is already annotated.
func (r *Renderer) Fallback(doc *dom.Document, el *html.Node) {
	_ = doc.Update(func(tx *dom.Tx) error {
		if el.Parent == nil || annotationAfter(el) != nil {
			return nil
		}
		ann := dom.Element("span", "class", ClassAnnotation)
		ann.AppendChild(dom.TextNode(dom.Text(el)))
		if tx.Attached(el) {
			if err := tx.InsertAfter(el, ann); err != nil {
				return err
			}
			tx.AddClass(el, ClassHidden)
			return nil
		}
		el.Parent.InsertBefore(ann, el.NextSibling)
		return nil
	})
}

// Fragment renders the annotation span for processed as HTML.
func (r *Renderer) Fragment(processed domain.ProcessedSubtitle) string {
	ann := dom.Element("span", "class", ClassAnnotation)
	for _, c := range r.nodes(processed) {
		ann.AppendChild(c)
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, ann)
	return buf.String()
}

// nodes builds the annotation children: plain words for gaps and one segment
// span per vocabulary span.
func (r *Renderer) nodes(p domain.ProcessedSubtitle) []*html.Node {
	var out []*html.Node
	var current *html.Node
	currentSpan := -1

	for _, seg := range p.Segments {
		word := r.word(seg)
		if seg.Span < 0 {
			current, currentSpan = nil, -1
			out = append(out, word)
			continue
		}
		if current == nil || seg.Span != currentSpan {
			current = r.segment(p, seg.Span)
			currentSpan = seg.Span
			out = append(out, current)
		}
		current.AppendChild(word)
	}
	return out
}

func (r *Renderer) segment(p domain.ProcessedSubtitle, i int) *html.Node {
	n := dom.Element("span", "class", ClassSegment)
	if i >= len(p.Vocabulary) {
		return n
	}
	v := p.Vocabulary[i]
	n.Attr = append(n.Attr,
		html.Attribute{Key: "data-vid", Val: strconv.Itoa(v.VID)},
		html.Attribute{Key: "data-sid", Val: strconv.Itoa(v.SID)},
		html.Attribute{Key: "data-state", Val: stateOf(&v.VocabularyEntry)},
		html.Attribute{Key: "data-position", Val: strconv.Itoa(v.Position)},
	)
	return n
}

func (r *Renderer) word(seg domain.Segment) *html.Node {
	state := StateUnparsed
	if seg.Entry != nil {
		state = stateOf(seg.Entry)
	}
	n := dom.Element("span", "class", ClassWord+" jpdb-"+state)
	if seg.Entry != nil {
		n.Attr = append(n.Attr,
			html.Attribute{Key: "data-vid", Val: strconv.Itoa(seg.Entry.VID)},
			html.Attribute{Key: "data-sid", Val: strconv.Itoa(seg.Entry.SID)},
		)
	}
	n.Attr = append(n.Attr,
		html.Attribute{Key: "data-state", Val: state},
		html.Attribute{Key: "data-position", Val: strconv.Itoa(seg.Position)},
	)
	if r.opts.InlineColors {
		n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: "color: " + r.color(state)})
	}
	n.AppendChild(dom.TextNode(seg.Text))
	return n
}

// stateOf maps an entry to its display state. Entries outside every deck
// show as not-in-deck.
func stateOf(e *domain.VocabularyEntry) string {
	if s := e.State(); s != "" {
		return s
	}
	return domain.CardNotInDeck
}

// annotationAfter returns el's next element sibling if it is an annotation span.
func annotationAfter(el *html.Node) *html.Node {
	for n := el.NextSibling; n != nil; n = n.NextSibling {
		if n.Type != html.ElementNode {
			continue
		}
		if dom.HasClass(n, ClassAnnotation) {
			return n
		}
		return nil
	}
	return nil
}

func sameMarkup(ann *html.Node, children []*html.Node) bool {
	var have, want bytes.Buffer
	for c := ann.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&have, c)
	}
	for _, c := range children {
		_ = html.Render(&want, c)
	}
	return bytes.Equal(have.Bytes(), want.Bytes())
}

func (r *Renderer) color(state string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.palette.Color(state)
}
