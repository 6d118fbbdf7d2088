package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/platform/queue"
	"github.com/Alias1177/MatchPredictor/models"
)

// Client is a wrapper for HTTP client with a request queue and retries
type Client struct {
	HTTPClient *http.Client
	Queue      *queue.Queue
	opts       ClientOptions
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout     time.Duration
	MinDelay    time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	// Queue is shared when several clients must be paced together
	Queue *queue.Queue
}

// NewClient creates a new HTTP client with a FIFO request queue
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinDelay == 0 {
		opts.MinDelay = queue.DefaultMinDelay
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 2 * time.Second
	}

	q := opts.Queue
	if q == nil {
		q = queue.New(opts.MinDelay)
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Queue:  q,
		opts:   opts,
		logger: log.With().Str("component", "http_client").Logger(),
	}
}

// Close stops the request queue
func (c *Client) Close() {
	c.Queue.Close()
}

// DoRequest performs an HTTP request through the queue and returns the body.
// 404 fails immediately, other failures are retried with exponential backoff.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) ([]byte, error) {
	return queue.Do(ctx, c.Queue, func(ctx context.Context) ([]byte, error) {
		return c.doWithRetry(ctx, req)
	})
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) ([]byte, error) {
	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := c.HTTPClient.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Str("url", req.URL.Path).Msg("Request failed")
			return fmt.Errorf("%w: %w", models.ErrTransport, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusNotFound {
				return backoff.Permanent(statusErr)
			}
			c.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Str("url", req.URL.Path).Msg("Non-2xx response")
			return statusErr
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading response body: %w", models.ErrTransport, err)
		}
		return nil
	}

	if err := backoff.Retry(operation, c.backoffPolicy(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// backoffPolicy waits base × 2^attempt between attempts
func (c *Client) backoffPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.BackoffBase << c.opts.MaxRetries
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)
}

// HTTPStatusError represents an error due to a non-2xx HTTP status code
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps the status code onto the error taxonomy
func (e *HTTPStatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	case http.StatusNotFound:
		return models.ErrNotFound
	default:
		return models.ErrTransport
	}
}
