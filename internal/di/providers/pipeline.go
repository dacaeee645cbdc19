package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/align"
	"github.com/subtitlelens/subtitlelens-server/internal/config"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/morph"
	"github.com/subtitlelens/subtitlelens-server/internal/morph/ichimoe"
	"github.com/subtitlelens/subtitlelens-server/internal/morph/kagome"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// ParserHandle wraps the configured morphological parser.
type ParserHandle struct {
	morph.Parser
	close func()
}

// Shutdown implements do.Shutdownable.
func (h *ParserHandle) Shutdown() error {
	if h.close != nil {
		h.close()
	}
	return nil
}

// ProvideParser provides the parser backend selected in the config.
func ProvideParser(i do.Injector) (*ParserHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Providers.Parser {
	case config.ParserKagome:
		p, err := kagome.New(cfg.Pipeline.DoNotSplit)
		if err != nil {
			return nil, err
		}
		log.Info("Parser initialized", "backend", p.Name())
		return &ParserHandle{Parser: p}, nil
	case config.ParserIchiMoe:
		c := ichimoe.New(ichimoe.Options{
			BaseURL:    cfg.Providers.IchiMoeURL,
			Timeout:    cfg.Providers.HTTPTimeout,
			DoNotSplit: cfg.Pipeline.DoNotSplit,
		}, log.WithComponent("ichimoe"))
		log.Info("Parser initialized", "backend", c.Name(), "url", cfg.Providers.IchiMoeURL)
		return &ParserHandle{Parser: c, close: c.Close}, nil
	default:
		return nil, fmt.Errorf("unknown parser %q", cfg.Providers.Parser)
	}
}

// JPDBClientHandle wraps the jpdb client with shutdown capability.
type JPDBClientHandle struct {
	*jpdb.Client
}

// Shutdown implements do.Shutdownable.
func (h *JPDBClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideJPDBClient provides the vocabulary client. The API key is read
// from the settings store on every request, so a new key takes effect
// without a restart.
func ProvideJPDBClient(i do.Injector) (*JPDBClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	credentials := jpdb.CredentialFunc(func(ctx context.Context) (string, error) {
		key, err := storeHandle.Get(ctx, store.KeyJPDBAPIKey)
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return key, err
	})

	client, err := jpdb.New(jpdb.Options{
		BaseURL:     cfg.Providers.JPDBURL,
		MinInterval: cfg.Providers.JPDBMinInterval,
		Timeout:     cfg.Providers.HTTPTimeout,
	}, credentials, log.WithComponent("jpdb"))
	if err != nil {
		return nil, err
	}

	log.Info("jpdb client initialized", "url", cfg.Providers.JPDBURL, "min_interval", cfg.Providers.JPDBMinInterval)
	return &JPDBClientHandle{Client: client}, nil
}

// ProvideRenderer provides the annotation renderer, seeded with the
// stored palette.
func ProvideRenderer(i do.Injector) (*render.Renderer, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	renderer := render.New(render.Options{})

	raw, err := storeHandle.Get(context.Background(), store.KeySubtitleColors)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		palette, err := render.ParsePalette(raw)
		if err != nil {
			log.Warn("Stored subtitle colors are invalid, using defaults", "error", err)
			break
		}
		renderer.SetPalette(palette)
	}

	return renderer, nil
}

// SessionManagerHandle wraps the session manager with its credential
// watch for lifecycle management.
type SessionManagerHandle struct {
	*session.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SessionManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSessionManager provides the per-player session manager.
func ProvideSessionManager(i do.Injector) (*SessionManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	parser := do.MustInvoke[*ParserHandle](i)
	jpdbHandle := do.MustInvoke[*JPDBClientHandle](i)
	renderer := do.MustInvoke[*render.Renderer](i)

	manager := session.NewManager(session.Deps{
		Parser:   parser.Parser,
		Lookup:   jpdbHandle.Client,
		Renderer: renderer,
		Emitter:  sseHandle.Manager,
	}, session.Options{
		Window:         cfg.Pipeline.WindowSize,
		Basis:          align.Basis(cfg.Providers.LookupBasis),
		CacheSize:      cfg.Pipeline.CacheSize,
		BackoffInitial: cfg.Pipeline.BackoffInitial,
		BackoffMax:     cfg.Pipeline.BackoffMax,
	}, log.WithComponent("session"))

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.WatchCredentials(ctx, storeHandle.Store); err != nil {
		cancel()
		return nil, err
	}

	log.Info("Session manager started", "window", cfg.Pipeline.WindowSize, "cache_size", cfg.Pipeline.CacheSize)
	return &SessionManagerHandle{Manager: manager, cancel: cancel}, nil
}
