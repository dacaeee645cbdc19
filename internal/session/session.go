// Package session runs the annotation pipeline for one player.
//
// A session collects offscreen subtitles into groups, sends each group once
// to the morphological parser and once to the vocabulary API, merges the
// results into processed subtitles and caches them by text. Onscreen
// subtitles are rendered from the cache, or parked until the group that
// contains them has been processed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"

	"github.com/subtitlelens/subtitlelens-server/internal/align"
	"github.com/subtitlelens/subtitlelens-server/internal/cache"
	"github.com/subtitlelens/subtitlelens-server/internal/dom"
	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/grouping"
	"github.com/subtitlelens/subtitlelens-server/internal/morph"
	"github.com/subtitlelens/subtitlelens-server/internal/observer"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/sse"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// Lookup resolves vocabulary for a batch of texts.
type Lookup interface {
	LookupBatch(ctx context.Context, texts []string) (*jpdb.Batch, error)
}

// Emitter publishes pipeline events.
type Emitter interface {
	Emit(event any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(any) {}

// Deps are the collaborators shared by every session.
type Deps struct {
	Parser   morph.Parser
	Lookup   Lookup
	Renderer *render.Renderer
	Emitter  Emitter
}

// Target is an onscreen subtitle element.
type Target struct {
	Document *dom.Document
	Element  *html.Node
	Text     domain.SubtitleText
}

type tracked struct {
	Target
	rendered bool
}

// Stats summarizes a session.
type Stats struct {
	Subtitles int    `json:"subtitles"`
	Groups    int    `json:"groups"`
	Processed int    `json:"processed_groups"`
	Cached    int    `json:"cached"`
	Pending   int    `json:"pending"`
	Frozen    bool   `json:"batch_ready"`
	Halted    string `json:"halted,omitempty"`
}

// Session is the pipeline state for one player.
type Session struct {
	ID string

	deps   Deps
	opts   Options
	logger *slog.Logger
	cache  *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// run is held by the single in-flight processing pass.
	run sync.Mutex

	mu        sync.Mutex
	batcher   *grouping.Batcher
	groups    []domain.Group
	frozen    bool
	processed map[string]bool
	targets   map[*html.Node]*tracked
	halted    error
	backoff   *backoff.ExponentialBackOff
	notBefore time.Time
	rerun     []domain.SubtitleText
	closed    bool
}

func newSession(parent context.Context, sessionID string, deps Deps, opts Options, logger *slog.Logger) (*Session, error) {
	opts = opts.withDefaults()
	c, err := cache.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New(render.Options{})
	}
	if deps.Emitter == nil {
		deps.Emitter = noopEmitter{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BackoffInitial
	b.MaxInterval = opts.BackoffMax
	b.MaxElapsedTime = 0
	b.Clock = opts.Clock
	b.Reset()

	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        sessionID,
		deps:      deps,
		opts:      opts,
		logger:    logger.With("session_id", sessionID),
		cache:     c,
		ctx:       ctx,
		cancel:    cancel,
		batcher:   grouping.NewBatcher(opts.Limits...),
		processed: make(map[string]bool),
		targets:   make(map[*html.Node]*tracked),
		backoff:   b,
	}, nil
}

// Handlers adapts the session to an observer.
func (s *Session) Handlers() observer.Handlers {
	return observer.Handlers{
		OnOnscreen: func(t observer.Target) {
			s.OnOnscreen(Target{Document: t.Window.Document(), Element: t.Element, Text: t.Text})
		},
		OnOffscreen: func(text domain.SubtitleText) {
			s.OnOffscreen(text)
		},
		OnBatchReady: s.OnBatchReady,
	}
}

// OnOffscreen collects an offscreen subtitle. Subtitles arriving after the
// batch was frozen are not grouped; they are processed on demand.
func (s *Session) OnOffscreen(text domain.SubtitleText) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return false
	}
	return s.batcher.AddSubtitle(string(text))
}

// OnBatchReady freezes the collected groups and starts processing from the
// first group. Later calls do nothing.
func (s *Session) OnBatchReady() {
	s.mu.Lock()
	if s.frozen {
		s.mu.Unlock()
		return
	}
	s.frozen = true
	s.groups = s.batcher.Groups()
	groups := s.groups
	s.mu.Unlock()

	s.logger.Info("offscreen batch frozen", "subtitles", s.batcher.Len(), "groups", len(groups))
	if len(groups) > 0 {
		s.schedule(groups[0].Subtitles[0])
	}
}

// OnOnscreen renders target from the cache, or parks it and schedules
// processing of its group.
func (s *Session) OnOnscreen(t Target) {
	s.mu.Lock()
	s.targets[t.Element] = &tracked{Target: t}
	s.mu.Unlock()

	if s.cache.Has(t.Text) {
		s.renderTargets([]*tracked{{Target: t}})
		return
	}
	s.schedule(t.Text)
}

// Request returns the processed subtitle for text when it is cached. On a
// miss it schedules processing and reports false. A halted session reports
// its halt error for uncached text.
func (s *Session) Request(text domain.SubtitleText) (domain.ProcessedSubtitle, bool, error) {
	if p, ok := s.cache.Get(text); ok {
		return p, true, nil
	}
	if err := s.Halted(); err != nil {
		return domain.ProcessedSubtitle{}, false, err
	}
	s.schedule(text)
	return domain.ProcessedSubtitle{}, false, nil
}

// Cached returns the processed subtitle for text without scheduling anything.
func (s *Session) Cached(text domain.SubtitleText) (domain.ProcessedSubtitle, bool) {
	return s.cache.Get(text)
}

// Fragment renders processed as annotation markup.
func (s *Session) Fragment(p domain.ProcessedSubtitle) string {
	return s.deps.Renderer.Fragment(p)
}

// Groups returns the current groups: the frozen batch, or the groups formed
// so far while offscreen subtitles are still arriving.
func (s *Session) Groups() []domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentGroups()
}

func (s *Session) currentGroups() []domain.Group {
	if s.frozen {
		return s.groups
	}
	return s.batcher.Groups()
}

// Halted returns the sticky error that stopped processing, if any.
func (s *Session) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Resume clears a halt and reschedules every parked onscreen subtitle.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.halted == nil {
		s.mu.Unlock()
		return
	}
	s.halted = nil
	var texts []domain.SubtitleText
	for _, t := range s.targets {
		if !t.rendered && !slices.Contains(texts, t.Text) {
			texts = append(texts, t.Text)
		}
	}
	s.mu.Unlock()

	s.logger.Info("session resumed", "pending", len(texts))
	s.deps.Emitter.Emit(sse.NewSessionResumedEvent(s.ID))
	for _, text := range texts {
		s.schedule(text)
	}
}

// Refresh drops cached results that use vid and processes their groups
// again. Onscreen elements showing those subtitles are re-rendered.
//
// Refresh never waits for a running pass. When one is running, for example
// while it backs off after a rate limit, the affected subtitles are queued
// on that pass and Refresh returns queued=true at once.
func (s *Session) Refresh(ctx context.Context, vid int) (queued bool, err error) {
	texts := s.cache.InvalidateVocabulary(vid)
	if len(texts) == 0 {
		return false, nil
	}

	s.mu.Lock()
	for _, t := range s.targets {
		if slices.Contains(texts, t.Text) {
			t.rendered = false
		}
	}
	if !s.run.TryLock() {
		s.rerun = append(s.rerun, texts...)
		s.mu.Unlock()
		s.logger.Debug("refresh queued on running pass", "vid", vid, "subtitles", len(texts))
		return true, nil
	}
	groups := s.currentGroups()
	s.mu.Unlock()

	var affected []domain.Group
	seen := make(map[string]bool)
	for _, text := range texts {
		g := domain.Group{Index: -1, Subtitles: []domain.SubtitleText{text}}
		for _, candidate := range groups {
			if candidate.Contains(text) {
				g = candidate
				break
			}
		}
		if !seen[g.Key()] {
			seen[g.Key()] = true
			affected = append(affected, g)
		}
	}
	slices.SortStableFunc(affected, func(a, b domain.Group) int { return a.Index - b.Index })

	s.logger.Debug("refreshing vocabulary", "vid", vid, "subtitles", len(texts), "groups", len(affected))

	err = s.runGroups(ctx, affected)
	s.mu.Lock()
	rerun := s.rerun
	s.rerun = nil
	s.run.Unlock()
	s.mu.Unlock()

	for _, text := range rerun {
		s.schedule(text)
	}
	return false, err
}

// Stats summarizes the session.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Subtitles: s.batcher.Len(),
		Groups:    len(s.currentGroups()),
		Processed: len(s.processed),
		Cached:    s.cache.Len(),
		Frozen:    s.frozen,
	}
	for _, t := range s.targets {
		if !t.rendered {
			st.Pending++
		}
	}
	if s.halted != nil {
		st.Halted = s.halted.Error()
	}
	return st
}

// Wait blocks until background processing has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops background processing and drops cached results.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.cache.Purge()
	s.logger.Info("session closed")
}

func (s *Session) schedule(text domain.SubtitleText) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Go(func() {
		if err := s.ProcessOffscreenSubtitles(s.ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("processing stopped", "error", err)
		}
	})
}

// ProcessOffscreenSubtitles processes the window of groups around the group
// containing current, one group at a time and strictly in window order.
// Only one pass runs at a time. A call made while a pass is running is
// queued and handled by that pass once it finishes. Groups whose subtitles
// are all cached cost no provider calls.
func (s *Session) ProcessOffscreenSubtitles(ctx context.Context, current domain.SubtitleText) error {
	s.mu.Lock()
	if !s.run.TryLock() {
		s.rerun = append(s.rerun, current)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for {
		if err := s.runGroups(ctx, s.window(current)); err != nil {
			s.mu.Lock()
			s.rerun = nil
			s.run.Unlock()
			s.mu.Unlock()
			return err
		}

		s.mu.Lock()
		if len(s.rerun) == 0 {
			s.run.Unlock()
			s.mu.Unlock()
			return nil
		}
		current = s.rerun[0]
		s.rerun = s.rerun[1:]
		s.mu.Unlock()
	}
}

// window returns the groups to process for current, in order. Text outside
// every group becomes a singleton group of its own.
func (s *Session) window(current domain.SubtitleText) []domain.Group {
	s.mu.Lock()
	groups := s.currentGroups()
	s.mu.Unlock()

	for i, g := range groups {
		if !g.Contains(current) {
			continue
		}
		order := grouping.Sequence(i, len(groups), s.opts.Window)
		out := make([]domain.Group, len(order))
		for j, idx := range order {
			out[j] = groups[idx]
		}
		return out
	}
	return []domain.Group{{Index: -1, Subtitles: []domain.SubtitleText{current}}}
}

// runGroups applies the error policy to each group in turn. Only a halt or
// a canceled context stops the loop.
func (s *Session) runGroups(ctx context.Context, groups []domain.Group) error {
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Halted(); err != nil {
			return err
		}
		if s.complete(g) {
			continue
		}
		if err := s.waitBackoff(ctx); err != nil {
			return err
		}

		err := Classify(s.processGroup(ctx, g))
		switch {
		case err == nil:
			s.groupDone(g)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, domainerrors.ErrUnauthenticated):
			s.halt(err)
			return err
		case errors.Is(err, domainerrors.ErrRateLimited):
			delay := s.nextBackoff()
			s.logger.Warn("rate limited, backing off", "group", g.Index, "delay", delay, "error", err)
			s.deps.Emitter.Emit(sse.NewRateLimitedEvent(s.ID, s.provider(err), delay))
		default:
			s.logger.Warn("group skipped", "group", g.Index, "subtitles", len(g.Subtitles), "error", err)
			s.deps.Emitter.Emit(sse.NewGroupFailedEvent(s.ID, g.Index, len(g.Subtitles),
				string(domainerrors.CodeOf(err)), err.Error()))
		}
	}
	return nil
}

func (s *Session) complete(g domain.Group) bool {
	for _, text := range g.Subtitles {
		if !s.cache.Has(text) {
			return false
		}
	}
	return true
}

// processGroup sends g to both providers and caches the merged results.
// Nothing is cached unless the whole group merged cleanly.
func (s *Session) processGroup(ctx context.Context, g domain.Group) error {
	forms, err := s.deps.Parser.Parse(ctx, g.Text())
	if err != nil {
		return fmt.Errorf("%s: %w", s.deps.Parser.Name(), err)
	}
	if len(forms) == 0 {
		return ErrEmptyParse
	}

	plan := align.NewPlan(g, forms, s.opts.Basis)
	batch, err := s.deps.Lookup.LookupBatch(ctx, plan.Texts)
	if err != nil {
		return fmt.Errorf("jpdb: %w", err)
	}

	results, err := plan.Merge(batch.Tokens, batch.Vocabulary)
	if err != nil {
		return err
	}

	for i, p := range results {
		s.cache.Set(g.Subtitles[i], p)
		s.deps.Emitter.Emit(sse.NewSubtitleProcessedEvent(s.ID, p.OriginalText, len(p.Segments), s.deps.Renderer.Fragment(p)))
	}
	return nil
}

func (s *Session) groupDone(g domain.Group) {
	s.mu.Lock()
	s.processed[g.Key()] = true
	s.backoff.Reset()
	s.notBefore = time.Time{}
	var ready []*tracked
	for _, t := range s.targets {
		if !t.rendered && g.Contains(t.Text) {
			ready = append(ready, t)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("group processed", "group", g.Index, "subtitles", len(g.Subtitles))
	s.deps.Emitter.Emit(sse.NewGroupProcessedEvent(s.ID, g.Index, len(g.Subtitles)))
	s.renderTargets(ready)
}

// renderTargets renders each target whose element still shows the text it
// was reported with. Stale and detached targets are dropped.
func (s *Session) renderTargets(targets []*tracked) {
	for _, t := range targets {
		p, ok := s.cache.Get(t.Text)
		if !ok {
			continue
		}

		var current domain.SubtitleText
		_ = t.Document.View(func(*html.Node) error {
			current, _ = domain.NormalizeSubtitle(dom.Text(t.Element))
			return nil
		})
		if current != t.Text {
			s.untrack(t)
			continue
		}

		if err := s.deps.Renderer.Apply(t.Document, t.Element, p); err != nil {
			s.logger.Debug("render failed", "text", t.Text, "error", err)
			s.untrack(t)
			continue
		}

		s.mu.Lock()
		if cur, ok := s.targets[t.Element]; ok && cur.Text == t.Text {
			cur.rendered = true
		}
		s.mu.Unlock()
	}
}

func (s *Session) untrack(t *tracked) {
	s.mu.Lock()
	if cur, ok := s.targets[t.Element]; ok && cur.Text == t.Text {
		delete(s.targets, t.Element)
	}
	s.mu.Unlock()
}

func (s *Session) halt(err error) {
	s.mu.Lock()
	already := s.halted != nil
	s.halted = err
	s.mu.Unlock()
	if already {
		return
	}
	s.logger.Warn("session halted", "error", err)
	s.deps.Emitter.Emit(sse.NewSessionHaltedEvent(s.ID, string(domainerrors.CodeOf(err)), err.Error()))
}

func (s *Session) nextBackoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.backoff.NextBackOff()
	if d == backoff.Stop {
		d = s.opts.BackoffMax
	}
	s.notBefore = s.opts.Clock.Now().Add(d)
	return d
}

func (s *Session) waitBackoff(ctx context.Context) error {
	s.mu.Lock()
	d := s.notBefore.Sub(s.opts.Clock.Now())
	s.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-s.opts.Clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) provider(err error) string {
	if errors.Is(err, jpdb.ErrRateLimited) {
		return "jpdb"
	}
	return s.deps.Parser.Name()
}
