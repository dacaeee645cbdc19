// Package config loads server and pipeline configuration from command-line flags,
// environment variables and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Parser backends.
const (
	ParserIchiMoe = "ichimoe"
	ParserKagome  = "kagome"
)

// Vocabulary lookup bases.
const (
	BasisSurface = "surface"
	BasisLemma   = "lemma"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Store     StoreConfig
	Providers ProvidersConfig
	Pipeline  PipelineConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Output string // stdout or stderr (default: stdout)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimitRPS   float64  // Per-client request rate for the API (default: 20)
	RateLimitBurst int      // Per-client burst (default: 40)
	AllowedOrigins []string // CORS origins allowed to call the API (default: *)
}

// StoreConfig holds settings store configuration.
type StoreConfig struct {
	// Path is the badger directory for persisted settings.
	Path string
}

// ProvidersConfig describes the two upstream annotation providers.
type ProvidersConfig struct {
	Parser          string        // ichimoe or kagome (default: ichimoe)
	IchiMoeURL      string        // default: https://ichi.moe/cl/qr/
	JPDBURL         string        // default: https://jpdb.io/api/v1
	JPDBMinInterval time.Duration // spacing between jpdb calls (default: 200ms)
	LookupBasis     string        // surface or lemma (default: surface)
	HTTPTimeout     time.Duration // default: 30s
}

// PipelineConfig tunes grouping, caching and scheduling.
type PipelineConfig struct {
	WindowSize     int           // groups per processing window (default: 6)
	DedupWindow    time.Duration // default: 1s
	SettleDelay    time.Duration // offscreen preload settle delay (default: 750ms)
	CacheSize      int           // processed subtitles kept per session (default: 8192)
	BackoffInitial time.Duration // first back-off after a rate limit (default: 2s)
	BackoffMax     time.Duration // default: 1m
	DoNotSplit     []string      // surface forms kept whole (default: みたい)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(flag.CommandLine, os.Args[1:])
}

// LoadConfigFrom is LoadConfig with an explicit flag set and argument list.
func LoadConfigFrom(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logOutput := fs.String("log-output", "", "Log destination (stdout, stderr)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0, streaming)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")

	storePath := fs.String("store-path", "", "Path to the settings database")

	parser := fs.String("parser", "", "Morphological parser backend (ichimoe, kagome)")
	lookupBasis := fs.String("lookup-basis", "", "Vocabulary lookup text (surface, lemma)")
	jpdbURL := fs.String("jpdb-url", "", "jpdb API base URL")
	ichiMoeURL := fs.String("ichimoe-url", "", "ichi.moe query URL")

	windowSize := fs.String("window-size", "", "Groups per processing window (default: 6)")
	cacheSize := fs.String("cache-size", "", "Processed subtitles kept per session (default: 8192)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Output: strings.ToLower(getConfigValue(*logOutput, "LOG_OUTPUT", "stdout")),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			RateLimitRPS:   getFloatConfigValue("", "SERVER_RATE_LIMIT_RPS", 20),
			RateLimitBurst: getIntConfigValue("", "SERVER_RATE_LIMIT_BURST", 40),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "SERVER_ALLOWED_ORIGINS", "*")),
		},
		Store: StoreConfig{
			Path: getConfigValue(*storePath, "STORE_PATH", ""),
		},
		Providers: ProvidersConfig{
			Parser:      strings.ToLower(getConfigValue(*parser, "PARSER", ParserIchiMoe)),
			IchiMoeURL:  getConfigValue(*ichiMoeURL, "ICHIMOE_URL", "https://ichi.moe/cl/qr/"),
			JPDBURL:     getConfigValue(*jpdbURL, "JPDB_URL", "https://jpdb.io/api/v1"),
			LookupBasis: strings.ToLower(getConfigValue(*lookupBasis, "LOOKUP_BASIS", BasisSurface)),
		},
		Pipeline: PipelineConfig{
			WindowSize: getIntConfigValue(*windowSize, "PIPELINE_WINDOW_SIZE", 6),
			CacheSize:  getIntConfigValue(*cacheSize, "PIPELINE_CACHE_SIZE", 8192),
			DoNotSplit: splitList(getConfigValue("", "PIPELINE_DO_NOT_SPLIT", "みたい")),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dest      *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "0s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "JPDB_MIN_INTERVAL", "200ms", &cfg.Providers.JPDBMinInterval},
		{"", "PROVIDER_HTTP_TIMEOUT", "30s", &cfg.Providers.HTTPTimeout},
		{"", "PIPELINE_DEDUP_WINDOW", "1s", &cfg.Pipeline.DedupWindow},
		{"", "PIPELINE_SETTLE_DELAY", "750ms", &cfg.Pipeline.SettleDelay},
		{"", "PIPELINE_BACKOFF_INITIAL", "2s", &cfg.Pipeline.BackoffInitial},
		{"", "PIPELINE_BACKOFF_MAX", "1m", &cfg.Pipeline.BackoffMax},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dest = parsed
	}

	if err := cfg.expandStorePath(); err != nil {
		return nil, fmt.Errorf("invalid store path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Output != "" && c.Logger.Output != "stdout" && c.Logger.Output != "stderr" {
		return fmt.Errorf("invalid log output: %q (must be stdout or stderr)", c.Logger.Output)
	}

	if c.Store.Path == "" {
		return errors.New("store path cannot be empty after expansion")
	}

	switch c.Providers.Parser {
	case ParserIchiMoe, ParserKagome:
	default:
		return fmt.Errorf("invalid parser: %q (must be %s or %s)", c.Providers.Parser, ParserIchiMoe, ParserKagome)
	}

	switch c.Providers.LookupBasis {
	case BasisSurface, BasisLemma:
	default:
		return fmt.Errorf("invalid lookup basis: %q (must be %s or %s)", c.Providers.LookupBasis, BasisSurface, BasisLemma)
	}

	if c.Providers.JPDBMinInterval < 0 {
		return errors.New("jpdb min interval cannot be negative")
	}
	if c.Pipeline.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.Pipeline.WindowSize)
	}
	if c.Pipeline.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1, got %d", c.Pipeline.CacheSize)
	}
	if c.Pipeline.BackoffMax < c.Pipeline.BackoffInitial {
		return errors.New("backoff max must not be smaller than backoff initial")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStorePath defaults the settings database to ~/SubtitleLens/settings.
func (c *Config) expandStorePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "SubtitleLens", "settings")

	expanded, err := expandPath(c.Store.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Store.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars already set take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
