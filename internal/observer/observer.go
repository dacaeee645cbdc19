// Package observer watches a page for subtitle lines.
//
// Onscreen lines are what the player currently shows; offscreen lines are the
// preloaded buffer the player keeps hidden in the document. Both are reported
// as trimmed text, deduplicated per channel within a short window. The
// observer follows the main document, every open shadow root and every
// same-origin frame known to the frame registry.
package observer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/html"

	"github.com/subtitlelens/subtitlelens-server/internal/dedup"
	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/frames"
)

// Channel distinguishes onscreen from offscreen sightings.
type Channel string

const (
	ChannelOnscreen  Channel = "onscreen"
	ChannelOffscreen Channel = "offscreen"
)

var channels = [...]Channel{ChannelOnscreen, ChannelOffscreen}

// ErrNoHandlers is returned by Observe when every handler is nil.
var ErrNoHandlers = errors.New("observer: no handlers")

// Target is an onscreen subtitle element and the window it lives in.
type Target struct {
	Window  *dom.Window
	Element *html.Node
	Text    domain.SubtitleText
}

// Handlers receive sightings. All calls happen on the observer's goroutine,
// in the order the page produced them.
type Handlers struct {
	OnOnscreen   func(Target)
	OnOffscreen  func(domain.SubtitleText)
	OnBatchReady func()
}

// Observer reports subtitle sightings in a window.
type Observer struct {
	win    *dom.Window
	frames *frames.Registry
	opts   Options
	dedup  *dedup.Window
	logger *slog.Logger
}

// New creates an observer. registry may be nil when frames are not tracked;
// when set, it must already be listening on win.
func New(win *dom.Window, registry *frames.Registry, opts Options, logger *slog.Logger) *Observer {
	opts = opts.withDefaults()
	return &Observer{
		win:    win,
		frames: registry,
		opts:   opts,
		dedup:  dedup.New(opts.DedupWindow, dedup.DefaultSize, opts.Clock),
		logger: logger,
	}
}

// Subscription is a running observation.
type Subscription struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stop ends the observation and waits for the observer goroutine to exit.
// It must not be called from a handler. Safe to call more than once.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Done is closed once the observation has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Observe starts watching. The initial sweep of existing subtitle elements
// runs on the observer goroutine before any mutation is handled.
func (o *Observer) Observe(ctx context.Context, h Handlers) (*Subscription, error) {
	if h.OnOnscreen == nil && h.OnOffscreen == nil && h.OnBatchReady == nil {
		return nil, ErrNoHandlers
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &Subscription{stop: make(chan struct{}), done: make(chan struct{})}
	r := &run{
		o:       o,
		h:       h,
		sub:     sub,
		wake:    make(chan struct{}, 1),
		exit:    make(chan struct{}),
		watched: make(map[*dom.Document]*watched),
	}
	go r.loop(ctx)
	return sub, nil
}

type watched struct {
	win *dom.Window
	sub *dom.Subscription
}

type run struct {
	o   *Observer
	h   Handlers
	sub *Subscription

	wake chan struct{}
	exit chan struct{}
	wg   sync.WaitGroup

	watched     map[*dom.Document]*watched
	order       []*dom.Document
	framesDirty atomic.Bool

	settle    clockwork.Timer
	settleC   <-chan time.Time
	container *html.Node
	fired     bool
}

func (r *run) loop(ctx context.Context) {
	defer close(r.sub.done)

	removeListener := r.o.win.AddMessageListener(func(dom.Message) {
		r.framesDirty.Store(true)
		r.notify()
	})
	defer func() {
		removeListener()
		for _, w := range r.watched {
			w.sub.Close()
		}
		if r.settle != nil {
			r.settle.Stop()
		}
		close(r.exit)
		r.wg.Wait()
	}()

	r.o.logger.Debug("observer started", "onscreen", r.o.opts.OnscreenSelector, "offscreen", r.o.opts.OffscreenSelector)
	r.watch(r.o.win)
	r.attachFrames()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.sub.stop:
			return
		case <-r.wake:
			if r.framesDirty.Swap(false) {
				r.attachFrames()
			}
			for _, doc := range r.order {
				r.drain(r.watched[doc])
			}
		case <-r.settleC:
			r.settleC = nil
			r.fireBatch()
		}
	}
}

func (r *run) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// watch subscribes to win's document and sweeps its current content.
func (r *run) watch(win *dom.Window) {
	doc := win.Document()
	if _, ok := r.watched[doc]; ok {
		return
	}
	w := &watched{win: win, sub: doc.Subscribe()}
	r.watched[doc] = w
	r.order = append(r.order, doc)

	r.wg.Go(func() {
		for {
			select {
			case <-r.exit:
				return
			case <-w.sub.Ready():
				r.notify()
			}
		}
	})

	r.sweep(w)
}

func (r *run) attachFrames() {
	if r.o.frames == nil {
		return
	}
	for frameID, f := range r.o.frames.All() {
		child, err := f.ContentWindow()
		if err != nil {
			r.o.logger.Debug("skipping frame", "frame_id", frameID, "error", err)
			continue
		}
		r.watch(child)
	}
}

type event struct {
	preload   bool
	channel   Channel
	win       *dom.Window
	el        *html.Node
	text      domain.SubtitleText
	container *html.Node
}

func (r *run) sweep(w *watched) {
	var events []event
	_ = w.win.Document().View(func(root *html.Node) error {
		scopes := append([]*html.Node{root}, dom.ShadowRoots(root)...)
		for _, scope := range scopes {
			for _, ch := range channels {
				for _, el := range dom.QueryAll(scope, r.o.selector(ch)) {
					if ev, ok := r.sighting(w.win, ch, el); ok {
						events = append(events, ev)
					}
				}
			}
		}
		return nil
	})
	r.dispatch(events)
}

func (r *run) drain(w *watched) {
	records := w.sub.Drain()
	if len(records) == 0 {
		return
	}

	var events []event
	_ = w.win.Document().View(func(root *html.Node) error {
		m := newMatcher(r.o)
		seen := make(map[*html.Node]map[Channel]bool)
		for _, rec := range records {
			switch rec.Type {
			case dom.MutationPreloadComplete:
				events = append(events, event{preload: true, container: rec.Target})
				continue
			case dom.MutationAttributes:
				if !slices.Contains(r.o.opts.VisibilityAttributes, rec.AttributeName) {
					continue
				}
			}

			for _, n := range append([]*html.Node{rec.Target}, rec.Added...) {
				if n == nil || !within(root, n) {
					continue
				}
				for _, ch := range channels {
					for _, el := range m.affected(n, ch) {
						if seen[el][ch] {
							continue
						}
						if seen[el] == nil {
							seen[el] = make(map[Channel]bool)
						}
						seen[el][ch] = true
						if ev, ok := r.sighting(w.win, ch, el); ok {
							events = append(events, ev)
						}
					}
				}
			}
		}
		return nil
	})
	r.dispatch(events)
}

func (r *run) sighting(win *dom.Window, ch Channel, el *html.Node) (event, bool) {
	if inAnnotation(el) {
		return event{}, false
	}
	text, ok := domain.NormalizeSubtitle(dom.Text(el))
	if !ok {
		return event{}, false
	}
	ev := event{channel: ch, win: win, el: el, text: text}
	if ch == ChannelOffscreen {
		ev.container = offscreenContainer(el)
	}
	return ev, true
}

func (r *run) dispatch(events []event) {
	for _, ev := range events {
		if ev.preload {
			r.preloadComplete(ev.container)
			continue
		}
		if !r.o.dedup.Allow(string(ev.channel), string(ev.text)) {
			continue
		}
		switch ev.channel {
		case ChannelOnscreen:
			if r.h.OnOnscreen != nil {
				r.h.OnOnscreen(Target{Window: ev.win, Element: ev.el, Text: ev.text})
			}
		case ChannelOffscreen:
			r.offscreenArrived(ev.container)
			if r.h.OnOffscreen != nil {
				r.h.OnOffscreen(ev.text)
			}
		}
	}
}

// offscreenArrived restarts the settle timer for the container's preload
// session. A different container starts a new session.
func (r *run) offscreenArrived(container *html.Node) {
	if container != r.container {
		r.container = container
		r.fired = false
	}
	if r.fired {
		return
	}
	if r.settle == nil {
		r.settle = r.o.opts.Clock.NewTimer(r.o.opts.SettleDelay)
	} else {
		if !r.settle.Stop() {
			select {
			case <-r.settle.Chan():
			default:
			}
		}
		r.settle.Reset(r.o.opts.SettleDelay)
	}
	r.settleC = r.settle.Chan()
}

func (r *run) preloadComplete(container *html.Node) {
	if container != nil && container != r.container {
		r.container = container
		r.fired = false
	}
	r.fireBatch()
}

func (r *run) fireBatch() {
	if r.fired {
		return
	}
	r.fired = true
	if r.settle != nil {
		r.settle.Stop()
	}
	r.settleC = nil
	r.o.logger.Debug("offscreen batch ready")
	if r.h.OnBatchReady != nil {
		r.h.OnBatchReady()
	}
}

func (o *Observer) selector(ch Channel) string {
	if ch == ChannelOnscreen {
		return o.opts.OnscreenSelector
	}
	return o.opts.OffscreenSelector
}

// matcher caches selector results per query scope for one drain.
type matcher struct {
	o    *Observer
	sets map[*html.Node]map[Channel]map[*html.Node]bool
}

func newMatcher(o *Observer) *matcher {
	return &matcher{o: o, sets: make(map[*html.Node]map[Channel]map[*html.Node]bool)}
}

func (m *matcher) matches(n *html.Node, ch Channel) bool {
	scope := dom.ScopeOf(n)
	byCh, ok := m.sets[scope]
	if !ok {
		byCh = make(map[Channel]map[*html.Node]bool)
		m.sets[scope] = byCh
	}
	set, ok := byCh[ch]
	if !ok {
		set = make(map[*html.Node]bool)
		for _, el := range dom.QueryAll(scope, m.o.selector(ch)) {
			set[el] = true
		}
		byCh[ch] = set
	}
	return set[n]
}

// affected returns the subtitle elements a change at n can have touched:
// the closest matching ancestor and every matching descendant.
func (m *matcher) affected(n *html.Node, ch Channel) []*html.Node {
	var out []*html.Node
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && m.matches(p, ch) {
			out = append(out, p)
			break
		}
	}
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && m.matches(c, ch) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func within(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func inAnnotation(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && dom.HasClass(p, AnnotationClass) {
			return true
		}
	}
	return false
}

func offscreenContainer(el *html.Node) *html.Node {
	if c := dom.Closest(el, offscreenContainerSelector); c != nil {
		return c
	}
	if el.Parent != nil {
		return el.Parent.Parent
	}
	return nil
}
