package session

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/id"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = domainerrors.NotFound("session not found")

// Manager owns the live sessions.
type Manager struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Every session shares deps.
func NewManager(deps Deps, opts Options, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create() (*Session, error) {
	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate session id")
	}
	s, err := newSession(m.ctx, sessionID, m.deps, m.opts, m.logger)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create session")
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", sessionID)
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Collect(maps.Values(m.sessions))
}

// ResumeAll resumes every halted session.
func (m *Manager) ResumeAll() {
	for _, s := range m.snapshot() {
		s.Resume()
	}
}

// RefreshVocabulary re-annotates every cached subtitle that uses vid, for
// instance after the card was added to a deck or reviewed.
func (m *Manager) RefreshVocabulary(ctx context.Context, vid int) error {
	var errs []error
	for _, s := range m.snapshot() {
		queued, err := s.Refresh(ctx, vid)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if queued {
			m.logger.Debug("refresh deferred to running pass", "session_id", s.ID, "vid", vid)
		}
	}
	return domainerrors.Join(errs...)
}

// WatchCredentials resumes halted sessions whenever the stored vocabulary
// API key changes to a non-empty value.
func (m *Manager) WatchCredentials(ctx context.Context, st *store.Store) error {
	return st.OnChange(ctx, store.KeyJPDBAPIKey, func(c store.Change) {
		if c.Deleted {
			return
		}
		m.logger.Info("vocabulary api key changed, resuming sessions")
		m.ResumeAll()
	})
}

// Shutdown closes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	sessions := slices.Collect(maps.Values(m.sessions))
	clear(m.sessions)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range sessions {
			s.Close()
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
