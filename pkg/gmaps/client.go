// Package gmaps wraps the Google Maps Platform client with the route, ETA,
// distance-matrix and geocoding calls used by the tracking core.
package gmaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"
)

// Config holds the provider settings
type Config struct {
	APIKey string

	// BaseURL overrides the Google endpoint (tests, proxies)
	BaseURL string

	// Timeout bounds every single attempt
	Timeout time.Duration

	// RequestsPerSecond is the client-side rate limit (0 = library default)
	RequestsPerSecond int

	// MaxAttempts is the number of tries for transient failures
	MaxAttempts int

	// RetryBackoff is the first wait between attempts, doubled every retry
	RetryBackoff time.Duration
}

// Client wraps the Google Maps API client
type Client struct {
	client      *maps.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// NewClient creates a new Google Maps API client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, maps.WithRateLimit(cfg.RequestsPerSecond))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	c := &Client{
		client:      client,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		logger:      logger.With(slog.String("component", "gmaps")),
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	if c.backoff <= 0 {
		c.backoff = 200 * time.Millisecond
	}
	return c, nil
}

// call runs fn with a per-attempt timeout, retrying transient provider
// failures with exponential backoff while respecting ctx.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := c.backoff
	var lastErr *RouteProviderError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return classify(op, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		// The parent context ending is not a provider failure worth retrying
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return classify(op, err)
		}

		lastErr = classify(op, err)
		if !lastErr.Temporary() || attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("retrying provider call",
			slog.String("op", op),
			slog.String("status", lastErr.Status),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(op, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return lastErr
}

// Close closes the Google Maps client connection
func (c *Client) Close() error {
	// Google Maps client doesn't have a Close method
	return nil
}
