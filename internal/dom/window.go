package dom

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrCrossOrigin is returned when a frame's document belongs to another origin.
var ErrCrossOrigin = errors.New("dom: cross-origin frame")

// Message is a postMessage payload together with the window that sent it.
type Message struct {
	Source *Window
	Data   any
}

// Window is a browsing context: a document, its embedding frame and the
// frames it embeds.
type Window struct {
	doc    *Document
	origin string
	parent *Window
	frame  *Frame

	mu        sync.Mutex
	listeners map[int]func(Message)
	nextID    int
	frames    []*Frame
}

// Frame is an iframe element and the window loaded into it.
type Frame struct {
	Element *html.Node
	Owner   *Window

	child       *Window
	crossOrigin bool
}

// NewWindow creates a top-level window around doc.
func NewWindow(doc *Document, origin string) *Window {
	return &Window{doc: doc, origin: origin, listeners: make(map[int]func(Message))}
}

// Parse reads a page and builds its window tree. Frames with a srcdoc
// attribute get a same-origin child window. Frames whose src points at
// another origin are recorded as cross-origin and have no readable document.
func Parse(r io.Reader, origin string) (*Window, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	w := NewWindow(doc, origin)
	if err := w.loadFrames(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Window) loadFrames() error {
	var iframes []*html.Node
	_ = w.doc.View(func(root *html.Node) error {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Iframe {
					iframes = append(iframes, c)
				}
				walk(c)
			}
		}
		walk(root)
		return nil
	})

	for _, el := range iframes {
		f := &Frame{Element: el, Owner: w}
		switch {
		case HasAttr(el, "srcdoc"):
			doc, err := ParseDocument(strings.NewReader(Attr(el, "srcdoc")))
			if err != nil {
				return fmt.Errorf("frame srcdoc: %w", err)
			}
			f.attach(NewWindow(doc, w.origin))
			if err := f.child.loadFrames(); err != nil {
				return err
			}
		case !sameOrigin(w.origin, Attr(el, "src")):
			f.crossOrigin = true
		default:
			f.attach(NewWindow(NewDocument(emptyDocument()), w.origin))
		}
		w.frames = append(w.frames, f)
	}
	return nil
}

func (f *Frame) attach(child *Window) {
	child.parent = f.Owner
	child.frame = f
	f.child = child
}

// ContentWindow returns the window loaded in the frame.
func (f *Frame) ContentWindow() (*Window, error) {
	if f.crossOrigin || f.child == nil {
		return nil, ErrCrossOrigin
	}
	return f.child, nil
}

// CrossOrigin reports whether the frame's content is unreadable.
func (f *Frame) CrossOrigin() bool {
	return f.crossOrigin
}

// Document returns the window's document.
func (w *Window) Document() *Document {
	return w.doc
}

// Origin returns the window's origin.
func (w *Window) Origin() string {
	return w.origin
}

// Parent returns the embedding window, or nil for a top-level window.
func (w *Window) Parent() *Window {
	return w.parent
}

// FrameElement returns the frame that embeds w, or nil.
func (w *Window) FrameElement() *Frame {
	return w.frame
}

// Frames returns the frames directly embedded in w.
func (w *Window) Frames() []*Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Frame, len(w.frames))
	copy(out, w.frames)
	return out
}

// PostMessage delivers data to every listener on w, synchronously and in
// registration order. source is the sending window.
func (w *Window) PostMessage(source *Window, data any) {
	w.mu.Lock()
	fns := make([]func(Message), 0, len(w.listeners))
	for i := range w.nextID {
		if fn, ok := w.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	w.mu.Unlock()

	msg := Message{Source: source, Data: data}
	for _, fn := range fns {
		fn(msg)
	}
}

// AddMessageListener registers fn and returns a function that removes it.
func (w *Window) AddMessageListener(fn func(Message)) (remove func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

func sameOrigin(origin, src string) bool {
	if src == "" || src == "about:blank" {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return true
	}
	base, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

func emptyDocument() *html.Node {
	root, _ := html.Parse(strings.NewReader("<html><head></head><body></body></html>"))
	return root
}
