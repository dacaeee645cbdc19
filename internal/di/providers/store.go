package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/config"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/sse"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// ProvideSSEHandler provides the event stream HTTP handler.
func ProvideSSEHandler(i do.Injector) (*sse.Handler, error) {
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	return sse.NewHandler(sseHandle.Manager, log.Logger), nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the settings store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Store.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Settings store initialized", "path", cfg.Store.Path)

	if _, err := db.Get(context.Background(), store.KeyJPDBAPIKey); errors.Is(err, store.ErrNotFound) {
		log.Warn("No jpdb API key stored - sessions will halt until one is set via PUT /api/v1/settings/jpdb_api_key")
	}

	return &StoreHandle{Store: db}, nil
}
