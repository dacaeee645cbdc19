// Package providers contains dependency injection providers for the subtitlelens server.
package providers

import (
	"io"
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/config"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	var out io.Writer = os.Stdout
	if cfg.Logger.Output == "stderr" {
		out = os.Stderr
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Writer:      out,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting subtitlelens server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store_path", cfg.Store.Path,
		"parser", cfg.Providers.Parser,
		"lookup_basis", cfg.Providers.LookupBasis,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
