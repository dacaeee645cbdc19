// Package di provides dependency injection configuration for the subtitlelens server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/config"
	"github.com/subtitlelens/subtitlelens-server/internal/di/providers"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/render"
	"github.com/subtitlelens/subtitlelens-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage and events
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideSSEHandler)

	// Providers
	do.Provide(injector, providers.ProvideParser)
	do.Provide(injector, providers.ProvideJPDBClient)

	// Pipeline
	do.Provide(injector, providers.ProvideRenderer)
	do.Provide(injector, providers.ProvideSessionManager)
	do.Provide(injector, providers.ProvideAnnotator)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the pipeline services. Setting serve also starts
// the HTTP server.
func Bootstrap(injector *do.RootScope, serve bool) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	if _, err := do.Invoke[*providers.ParserHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.JPDBClientHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*render.Renderer](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SessionManagerHandle](injector); err != nil {
		return err
	}

	if !serve {
		return nil
	}
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
