// Package ichimoe parses Japanese text through the ichi.moe web segmenter.
package ichimoe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/grouping"
	"github.com/subtitlelens/subtitlelens-server/internal/morph"
	"github.com/subtitlelens/subtitlelens-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the quick-result endpoint.
	DefaultBaseURL = "https://ichi.moe/cl/qr/"

	defaultTimeout     = 30 * time.Second
	defaultMinInterval = 500 * time.Millisecond

	// Consecutive failures before the breaker opens, and how long it stays open.
	breakerFailures = 5
	breakerTimeout  = time.Minute
)

// Limit is the largest query ichi.moe accepts, in characters of the joined group.
var Limit = grouping.Limit{Unit: grouping.UnitChars, Max: 400}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	DoNotSplit  []string
	HTTPClient  *http.Client
}

// Client is a rate-limited, circuit-broken ichi.moe client.
type Client struct {
	http      *http.Client
	baseURL   string
	limiter   *ratelimit.KeyedRateLimiter
	breaker   *gobreaker.CircuitBreaker
	dontSplit morph.DoNotSplit
	logger    *slog.Logger
}

var _ morph.Parser = (*Client)(nil)

// New creates a new ichi.moe client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.DoNotSplit == nil {
		opts.DoNotSplit = morph.DefaultDoNotSplit
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		http:      httpClient,
		baseURL:   opts.BaseURL,
		limiter:   ratelimit.Every(opts.MinInterval),
		dontSplit: morph.NewDoNotSplit(opts.DoNotSplit...),
		logger:    logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ichimoe",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrBadRequest) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "ichimoe"
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Parse sends groupText to ichi.moe and extracts the glossed forms.
func (c *Client) Parse(ctx context.Context, groupText string) ([]domain.MorphemeForm, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, groupText)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrUnavailable
		}
		return nil, wrapError("parse", err)
	}

	forms, err := ParseHTML(bytes.NewReader(res.([]byte)), c.dontSplit)
	if err != nil {
		return nil, wrapError("parse", err)
	}

	c.logger.Debug("ichimoe parsed group", "chars", domain.UnitLen(groupText), "forms", len(forms))
	return forms, nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u.RawQuery = url.Values{"q": {text}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "SubtitleLens/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrBadRequest
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
