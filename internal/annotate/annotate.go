// Package annotate runs the subtitle pipeline over saved player pages.
// A snapshot is a static HTML dump of the page, subtitle overlay and
// offscreen preload included. The annotated page is written back out.
package annotate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/html"

	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/frames"
	"github.com/subtitlelens/subtitlelens-server/internal/observer"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/watcher"
)

// OutputSuffix replaces the snapshot extension in generated file names.
const OutputSuffix = ".annotated.html"

// Defaults for a static page: nothing arrives after the first sweep, so
// the batch can be declared ready almost immediately.
const (
	DefaultOrigin       = "file://"
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultPollInterval = 20 * time.Millisecond
)

// Options configures an Annotator.
type Options struct {
	Origin       string
	Observer     observer.Options
	SettleDelay  time.Duration
	PollInterval time.Duration
	Clock        clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.Origin == "" {
		o.Origin = DefaultOrigin
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Observer.SettleDelay <= 0 {
		o.Observer.SettleDelay = o.SettleDelay
	}
	if o.Observer.Clock == nil {
		o.Observer.Clock = o.Clock
	}
	return o
}

// Annotator annotates snapshots, one session per snapshot.
type Annotator struct {
	sessions *session.Manager
	opts     Options
	logger   *slog.Logger
}

// New creates an annotator backed by sessions.
func New(sessions *session.Manager, opts Options, logger *slog.Logger) *Annotator {
	return &Annotator{sessions: sessions, opts: opts.withDefaults(), logger: logger}
}

// Annotate reads a snapshot from r, annotates every onscreen subtitle and
// writes the resulting page to w. A session halted by a credential
// failure returns its halt error and writes nothing.
func (a *Annotator) Annotate(ctx context.Context, r io.Reader, w io.Writer) (session.Stats, error) {
	win, err := dom.Parse(r, a.opts.Origin)
	if err != nil {
		return session.Stats{}, fmt.Errorf("parse snapshot: %w", err)
	}

	registry := frames.NewRegistry(a.logger)
	stopFrames := registry.Listen(win)
	defer stopFrames()

	sess, err := a.sessions.Create()
	if err != nil {
		return session.Stats{}, err
	}
	defer func() { _ = a.sessions.Delete(sess.ID) }()

	obs := observer.New(win, registry, a.opts.Observer, a.logger)
	sub, err := obs.Observe(ctx, sess.Handlers())
	if err != nil {
		return session.Stats{}, fmt.Errorf("observe snapshot: %w", err)
	}
	defer sub.Stop()
	a.announceFrames(win)

	if err := a.settle(ctx, sess, hasOffscreen(win, a.opts.Observer)); err != nil {
		return sess.Stats(), err
	}
	sub.Stop()

	stats := sess.Stats()
	if err := win.Document().Render(w); err != nil {
		return stats, fmt.Errorf("render snapshot: %w", err)
	}
	return stats, nil
}

// settle waits until the observer has swept the page, the offscreen batch
// (if any) is frozen and every scheduled group has finished.
func (a *Annotator) settle(ctx context.Context, sess *session.Session, offscreen bool) error {
	clock := a.opts.Clock
	deadline := clock.Now().Add(a.opts.SettleDelay)
	ticker := clock.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := sess.Halted(); err != nil {
			return err
		}
		st := sess.Stats()
		if (st.Frozen || !offscreen) && !clock.Now().Before(deadline) {
			sess.Wait()
			return sess.Halted()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// announceFrames plays the part of the content script loaded in each
// same-origin iframe, so the observer follows subtitles rendered there.
func (a *Annotator) announceFrames(win *dom.Window) {
	for _, f := range win.Frames() {
		child, err := f.ContentWindow()
		if err != nil {
			a.logger.Debug("frame skipped", "error", err)
			continue
		}
		if _, err := frames.Announce(child); err != nil {
			a.logger.Debug("frame announce failed", "error", err)
		}
	}
}

func hasOffscreen(win *dom.Window, opts observer.Options) bool {
	selector := opts.OffscreenSelector
	if selector == "" {
		selector = observer.DefaultOffscreenSelector
	}
	found := false
	_ = win.Document().View(func(root *html.Node) error {
		found = len(dom.QueryAll(root, selector)) > 0
		return nil
	})
	return found
}

// OutputPath names the annotated copy of a snapshot.
func OutputPath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + OutputSuffix
}

// AnnotateFile annotates the snapshot at in and writes it to out. The
// output is replaced atomically.
func (a *Annotator) AnnotateFile(ctx context.Context, in, out string) (session.Stats, error) {
	f, err := os.Open(in)
	if err != nil {
		return session.Stats{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	stats, err := a.Annotate(ctx, f, &buf)
	if err != nil {
		return stats, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".annotate-*")
	if err != nil {
		return stats, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return stats, err
	}

	a.logger.Info("snapshot annotated",
		"in", in,
		"out", out,
		"groups", stats.Groups,
		"cached", stats.Cached,
		"unrendered", stats.Pending,
	)
	return stats, nil
}

// Watch re-annotates snapshots as w reports them. Each added or modified
// file is written to OutputPath. It returns when ctx is canceled.
func (a *Annotator) Watch(ctx context.Context, w *watcher.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			a.logger.Warn("snapshot watcher error", "error", err)
		case ev := <-w.Events():
			if ev.Type == watcher.EventRemoved {
				continue
			}
			if _, err := a.AnnotateFile(ctx, ev.Path, OutputPath(ev.Path)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("annotate snapshot failed", "path", ev.Path, "error", err)
			}
		}
	}
}
