package annotate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
	"github.com/subtitlelens/subtitlelens-server/internal/watcher"
)

const snapshot = `<!DOCTYPE html><html><body>
<div class="asbplayer-offscreen"><div><span>猫が好き</span><span>魚を食べた</span></div></div>
<div class="asbplayer-subtitles-container-bottom"><div class="asbplayer-subtitles"><span>猫が好き</span></div></div>
</body></html>`

const onscreenOnly = `<html><body>
<div class="asbplayer-subtitles-container-bottom"><div class="asbplayer-subtitles"><span>魚を食べた</span></div></div>
</body></html>`

var dictionary = []string{"猫", "好き", "魚", "食べ"}

type wordParser struct{}

func (wordParser) Name() string { return "words" }

func (wordParser) Parse(_ context.Context, text string) ([]domain.MorphemeForm, error) {
	var forms []domain.MorphemeForm
	for _, w := range dictionary {
		if strings.Contains(text, w) {
			forms = append(forms, domain.SimpleForm(w, w))
		}
	}
	return forms, nil
}

type wordLookup struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *wordLookup) LookupBatch(_ context.Context, texts []string) (*jpdb.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}

	batch := &jpdb.Batch{Tokens: make([][]domain.VocabularyToken, len(texts))}
	for i, w := range dictionary {
		batch.Vocabulary = append(batch.Vocabulary, domain.VocabularyEntry{
			VID: 10 + i, SID: 1, Spelling: w, CardState: []string{domain.CardLearning},
		})
	}
	for i, text := range texts {
		for vi, w := range dictionary {
			if at := strings.Index(text, w); at >= 0 {
				batch.Tokens[i] = append(batch.Tokens[i], domain.VocabularyToken{
					VocabularyIndex: vi,
					Position:        domain.UnitOffset(text, at),
					Length:          domain.UnitLen(w),
				})
			}
		}
	}
	return batch, nil
}

func newAnnotator(t *testing.T, lookup *wordLookup) *Annotator {
	t.Helper()
	log := logger.Discard().Logger
	sessions := session.NewManager(session.Deps{
		Parser:   wordParser{},
		Lookup:   lookup,
		Renderer: render.New(render.Options{}),
	}, session.Options{}, log)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	return New(sessions, Options{SettleDelay: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond}, log)
}

func TestAnnotate(t *testing.T) {
	a := newAnnotator(t, &wordLookup{})

	var out bytes.Buffer
	stats, err := a.Annotate(context.Background(), strings.NewReader(snapshot), &out)
	require.NoError(t, err)

	assert.True(t, stats.Frozen)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 2, stats.Cached)
	assert.Contains(t, out.String(), `class="cr-subtitle"`)
	assert.Contains(t, out.String(), "asbplayer-offscreen")
}

func TestAnnotate_OnscreenOnly(t *testing.T) {
	a := newAnnotator(t, &wordLookup{})

	var out bytes.Buffer
	stats, err := a.Annotate(context.Background(), strings.NewReader(onscreenOnly), &out)
	require.NoError(t, err)

	assert.False(t, stats.Frozen)
	assert.Equal(t, 1, stats.Cached)
	assert.Contains(t, out.String(), `class="cr-subtitle"`)
}

func TestAnnotate_RejectedCredential(t *testing.T) {
	a := newAnnotator(t, &wordLookup{err: jpdb.ErrUnauthorized})

	var out bytes.Buffer
	_, err := a.Annotate(context.Background(), strings.NewReader(snapshot), &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUnauthenticated))
	assert.Empty(t, out.String())
}

func TestAnnotate_Canceled(t *testing.T) {
	a := newAnnotator(t, &wordLookup{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Annotate(ctx, strings.NewReader(snapshot), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/snap/ep01.annotated.html", OutputPath("/snap/ep01.html"))
	assert.Equal(t, "ep01.annotated.html", OutputPath("ep01.htm"))
}

func TestAnnotateFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "ep01.html")
	require.NoError(t, os.WriteFile(in, []byte(snapshot), 0o644))

	a := newAnnotator(t, &wordLookup{})
	_, err := a.AnnotateFile(context.Background(), in, OutputPath(in))
	require.NoError(t, err)

	got, err := os.ReadFile(OutputPath(in))
	require.NoError(t, err)
	assert.Contains(t, string(got), `class="cr-subtitle"`)

	_, err = a.AnnotateFile(context.Background(), filepath.Join(dir, "missing.html"), filepath.Join(dir, "out.html"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	a := newAnnotator(t, &wordLookup{})

	w, err := watcher.New(logger.Discard().Logger, watcher.Options{SettleDelay: 30 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	go func() {
		defer close(done)
		_ = a.Watch(ctx, w)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Stop()
	})

	in := filepath.Join(dir, "ep02.html")
	require.NoError(t, os.WriteFile(in, []byte(onscreenOnly), 0o644))

	assert.Eventually(t, func() bool {
		got, err := os.ReadFile(OutputPath(in))
		return err == nil && strings.Contains(string(got), `class="cr-subtitle"`)
	}, 3*time.Second, 20*time.Millisecond)
}
