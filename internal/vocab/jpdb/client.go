// Package jpdb is a client for the jpdb.io vocabulary and flashcard API.
package jpdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/subtitlelens/subtitlelens-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the jpdb API root.
	DefaultBaseURL = "https://jpdb.io/api/v1"

	// DefaultMinInterval is the spacing jpdb asks clients to keep between calls.
	DefaultMinInterval = 200 * time.Millisecond

	defaultTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	MinInterval time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client is a rate-limited jpdb client. Calls queue behind the limiter, so
// requests are never closer together than MinInterval. Nothing is retried.
type Client struct {
	http        *http.Client
	baseURL     string
	host        string
	credentials CredentialSource
	limiter     *ratelimit.KeyedRateLimiter
	logger      *slog.Logger
}

// New creates a new jpdb client.
func New(opts Options, credentials CredentialSource, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		host:        u.Host,
		credentials: credentials,
		limiter:     ratelimit.Every(opts.MinInterval),
		logger:      logger,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

type apiError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// post sends body to endpoint and decodes the response into out (if non-nil).
// The credential is resolved before the limiter, so a missing key never
// reaches the network.
func (c *Client) post(ctx context.Context, op, endpoint string, body, out any) error {
	key, err := c.credentials.APIKey(ctx)
	if err != nil {
		return wrapError(op, fmt.Errorf("read credential: %w", err))
	}
	if strings.TrimSpace(key) == "" {
		return wrapError(op, ErrMissingCredential)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return wrapError(op, fmt.Errorf("encode request: %w", err))
	}

	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return wrapError(op, fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return wrapError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("jpdb request", "op", op, "bytes", len(payload))

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(op, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}

func statusError(op string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	e := &Error{Op: op, Status: status, Message: apiErr.ErrorMessage}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Err = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		e.Err = ErrRateLimited
	case status >= 500:
		e.Err = ErrServer
	default:
		e.Err = fmt.Errorf("unexpected status %d", status)
	}
	return e
}
