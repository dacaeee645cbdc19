// Package watcher reports settled changes to page snapshot files.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// Watcher monitors snapshot files and directories. A write is reported
// once the file's size and modification time stop changing for
// SettleDelay.
type Watcher struct {
	logger *slog.Logger
	opts   Options
	fs     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEvent
	known   map[string]bool
	// files limits events to explicitly watched files inside a watched
	// parent directory. Empty means every file in watched directories.
	files map[string]bool
	dirs  map[string]bool

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// pendingEvent tracks a file that may still be changing
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   clockwork.Timer
}

// New creates a new file watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		fs:      fsw,
		pending: make(map[string]*pendingEvent),
		known:   make(map[string]bool),
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a file or directory. A file is watched through its parent
// directory; a directory is watched without recursion.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := path
	if info.IsDir() {
		w.dirs[path] = true
	} else {
		dir = filepath.Dir(path)
		w.files[path] = true
		w.known[path] = true
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}
	w.logger.Debug("added watch", "path", path)
	return nil
}

// Start processes file system events until ctx is canceled or Stop is
// called. It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

// Events returns the channel for receiving settled events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.relevant(path) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancelPending(path)
		w.mu.Lock()
		delete(w.known, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.startSettling(path)
	}
}

func (w *Watcher) relevant(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[path] {
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	return !w.opts.shouldIgnore(path)
}

// startSettling (re)arms the settle timer for path.
func (w *Watcher) startSettling(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	p := &pendingEvent{size: info.Size(), modTime: info.ModTime()}
	p.timer = w.opts.Clock.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
	w.pending[path] = p
}

// checkSettled emits the event if path has stopped changing, or rearms
// the timer if it has not.
func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		delete(w.known, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = w.opts.Clock.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	typ := EventAdded
	if w.known[path] {
		typ = EventModified
	}
	w.known[path] = true
	w.mu.Unlock()

	w.emit(Event{Type: typ, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}
