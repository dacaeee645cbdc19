// Package api provides the HTTP API the browser bridge talks to.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/subtitlelens/subtitlelens-server/internal/http/response"
	"github.com/subtitlelens/subtitlelens-server/internal/ratelimit"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/sse"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
	"github.com/subtitlelens/subtitlelens-server/internal/validation"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// DeckClient performs remote deck and review changes.
type DeckClient interface {
	AddToDeck(ctx context.Context, deckID, vid, sid int) error
	RemoveFromDeck(ctx context.Context, deckID, vid, sid int) error
	SetCardSentence(ctx context.Context, vid, sid int, sentence, translation string) error
	Review(ctx context.Context, vid, sid int, grade jpdb.Grade) error
	ListDecks(ctx context.Context) ([]jpdb.Deck, error)
}

// Deps groups what the handlers need.
type Deps struct {
	Sessions   *session.Manager
	Decks      DeckClient
	Settings   *store.Store
	Renderer   *render.Renderer
	SSEManager *sse.Manager
	SSEHandler *sse.Handler
	Validator  *validation.Validator
}

// Options configures the HTTP layer.
type Options struct {
	// AllowedOrigins for CORS. Empty allows every origin.
	AllowedOrigins []string
	// RateLimiter limits requests per client address. Nil disables limiting.
	RateLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	deps   Deps
	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}

	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("subtitlelens API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerDeckRoutes()
	s.registerSettingsRoutes()
	s.router.Get("/api/v1/sessions/{id}/events", s.handleEvents)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))
	if opts.RateLimiter != nil {
		s.router.Use(RateLimitMiddleware(opts.RateLimiter, s.logger))
	}
	s.router.Use(middleware.Compress(5))
}

// handleEvents streams a session's pipeline events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := s.deps.Sessions.Get(sessionID); err != nil {
		response.Error(w, err, s.logger)
		return
	}
	s.deps.SSEHandler.ServeSession(w, r, sessionID)
}
