package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/annotate"
	"github.com/subtitlelens/subtitlelens-server/internal/api"
	"github.com/subtitlelens/subtitlelens-server/internal/config"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/observer"
	"github.com/subtitlelens/subtitlelens-server/internal/ratelimit"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/sse"
	"github.com/subtitlelens/subtitlelens-server/internal/validation"
)

// RateLimiterHandle wraps the inbound request limiter.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-client API rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	sseHandler := do.MustInvoke[*sse.Handler](i)
	sessions := do.MustInvoke[*SessionManagerHandle](i)
	jpdbHandle := do.MustInvoke[*JPDBClientHandle](i)
	renderer := do.MustInvoke[*render.Renderer](i)
	validator := do.MustInvoke[*validation.Validator](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	handler := api.NewServer(api.Deps{
		Sessions:   sessions.Manager,
		Decks:      jpdbHandle.Client,
		Settings:   storeHandle.Store,
		Renderer:   renderer,
		SSEManager: sseHandle.Manager,
		SSEHandler: sseHandler,
		Validator:  validator,
	}, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter.KeyedRateLimiter,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}

// ProvideAnnotator provides the snapshot annotator used by the annotate command.
func ProvideAnnotator(i do.Injector) (*annotate.Annotator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sessions := do.MustInvoke[*SessionManagerHandle](i)

	return annotate.New(sessions.Manager, annotatorOptions(cfg), log.WithComponent("annotate")), nil
}

func annotatorOptions(cfg *config.Config) annotate.Options {
	return annotate.Options{
		SettleDelay: cfg.Pipeline.SettleDelay,
		Observer: observer.Options{
			DedupWindow: cfg.Pipeline.DedupWindow,
			SettleDelay: cfg.Pipeline.SettleDelay,
		},
	}
}
