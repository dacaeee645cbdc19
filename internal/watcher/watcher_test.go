package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/logger"
)

func startWatcher(t *testing.T, opts Options, paths ...string) *Watcher {
	t.Helper()

	w, err := New(logger.Discard().Logger, opts)
	require.NoError(t, err)
	for _, p := range paths {
		require.NoError(t, w.Watch(p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNew(t *testing.T) {
	w, err := New(logger.Discard().Logger, Options{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcher_WatchMissingPath(t *testing.T) {
	w, err := New(logger.Discard().Logger, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing.html")))
}

func TestWatcher_SnapshotCreated(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond}, dir)

	path := filepath.Join(dir, "episode01.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))

	event := nextEvent(t, w)
	assert.Equal(t, EventAdded, event.Type)
	assert.Equal(t, path, event.Path)
	assert.Equal(t, int64(13), event.Size)
}

func TestWatcher_WatchedFileModified(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode01.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>1</p>"), 0o644))

	w := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond}, path)

	require.NoError(t, os.WriteFile(path, []byte("<p>22</p>"), 0o644))

	event := nextEvent(t, w)
	assert.Equal(t, EventModified, event.Type)
	assert.Equal(t, path, event.Path)
}

func TestWatcher_SiblingsOfWatchedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode01.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>1</p>"), 0o644))

	w := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond}, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "episode02.html"), []byte("<p>2</p>"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("<p>11</p>"), 0o644))

	assert.Equal(t, path, nextEvent(t, w).Path)
}

func TestWatcher_FileDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode01.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>1</p>"), 0o644))

	w := startWatcher(t, Options{}, dir)

	require.NoError(t, os.Remove(path))

	event := nextEvent(t, w)
	assert.Equal(t, EventRemoved, event.Type)
	assert.Equal(t, path, event.Path)
}

func TestWatcher_IgnoresFilteredFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond}, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "episode01.annotated.html"), []byte("x"), 0o644))
	normal := filepath.Join(dir, "episode01.html")
	require.NoError(t, os.WriteFile(normal, []byte("x"), 0o644))

	assert.Equal(t, normal, nextEvent(t, w).Path)

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event for filtered file: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
