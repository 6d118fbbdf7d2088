package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/metrics"
	"github.com/Alias1177/MatchPredictor/internal/prompt"
	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

// Completer sends a system + user prompt to a provider and returns the completion text
type Completer interface {
	Complete(ctx context.Context, p provider.Provider, system, user string) (string, error)
}

// Selector picks providers and tracks their health
type Selector interface {
	SelectExcept(tried map[string]bool) (provider.Provider, error)
	RecordFailure(id string)
	RecordSuccess(id string)
}

// ExhaustedError is returned when every attempt failed. It matches
// models.ErrAllProvidersExhausted and carries the last underlying error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", models.ErrAllProvidersExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == models.ErrAllProvidersExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// CallerOptions holds retry settings for a Caller
type CallerOptions struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration
	AttemptTimeout time.Duration
	Metrics        *metrics.Metrics
}

// Caller asks providers for a prediction, rotating on failure
type Caller struct {
	selector  Selector
	completer Completer
	opts      CallerOptions
	logger    zerolog.Logger
}

// NewCaller creates a Caller
func NewCaller(selector Selector, completer Completer, opts CallerOptions) *Caller {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = 2 * time.Second
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 60 * time.Second
	}

	return &Caller{
		selector:  selector,
		completer: completer,
		opts:      opts,
		logger:    log.With().Str("component", "prediction_caller").Logger(),
	}
}

// MaxRetries returns the configured attempt budget
func (c *Caller) MaxRetries() int {
	return c.opts.MaxRetries
}

// Budget is the longest CallForPrediction can take with the configured
// attempts: every attempt hitting its timeout plus the waits between them.
func (c *Caller) Budget() time.Duration {
	base := c.opts.RetryDelay
	if c.opts.RateLimitDelay > base {
		base = c.opts.RateLimitDelay
	}
	wait := newDelay(base)

	total := time.Duration(c.opts.MaxRetries) * c.opts.AttemptTimeout
	for i := 1; i < c.opts.MaxRetries; i++ {
		total += wait.NextBackOff()
	}
	return total
}

// CallForPrediction makes up to maxRetries attempts across providers.
// It returns *ExhaustedError when all of them fail or when ctx reaches its
// deadline; a cancelled ctx returns the cancellation error.
func (c *Caller) CallForPrediction(ctx context.Context, req models.PredictionRequest, maxRetries int) (*models.PredictionResult, error) {
	if maxRetries <= 0 {
		maxRetries = c.opts.MaxRetries
	}

	userPrompt := prompt.Build(req)
	tried := make(map[string]bool)
	retryWait := newDelay(c.opts.RetryDelay)
	rateLimitWait := newDelay(c.opts.RateLimitDelay)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		p, err := c.selector.SelectExcept(tried)
		if err != nil {
			return nil, err
		}
		tried[p.ID] = true

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
		result, err := c.attempt(attemptCtx, p, userPrompt)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			c.selector.RecordSuccess(p.ID)
			result.Provider = p.Name
			result.Model = p.Model
			c.logger.Info().Str("provider", p.Name).Str("model", p.Model).Int("attempt", attempt).
				Dur("took", time.Since(start)).Msg("Prediction generated")
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, c.interrupted(ctx, attempt, err)
		}

		lastErr = err
		kind := failureKind(err)
		if timedOut {
			kind = "timeout"
		}
		c.selector.RecordFailure(p.ID)
		c.opts.Metrics.RecordProviderFailure(p.ID, kind)
		c.logger.Warn().Err(err).Str("provider", p.Name).Str("kind", kind).Int("attempt", attempt).
			Int("max_retries", maxRetries).Msg("Prediction attempt failed")

		if attempt == maxRetries {
			break
		}

		wait := retryWait
		if errors.Is(err, models.ErrRateLimited) {
			wait = rateLimitWait
		}
		if err := sleep(ctx, wait.NextBackOff()); err != nil {
			return nil, c.interrupted(ctx, attempt, lastErr)
		}
	}

	return nil, &ExhaustedError{Attempts: maxRetries, Last: lastErr}
}

// interrupted maps an expired ctx to *ExhaustedError so the request still
// gets an answer. Cancellation is returned as is.
func (c *Caller) interrupted(ctx context.Context, attempts int, last error) error {
	ctxErr := ctx.Err()
	if !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	c.logger.Warn().Err(last).Int("attempts", attempts).Msg("Deadline reached before a provider answered")
	if last == nil {
		last = ctxErr
	} else {
		last = fmt.Errorf("%w: %w", ctxErr, last)
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

func (c *Caller) attempt(ctx context.Context, p provider.Provider, userPrompt string) (*models.PredictionResult, error) {
	text, err := c.completer.Complete(ctx, p, prompt.SystemInstruction, userPrompt)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, models.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "transport"
	}
}

// newDelay returns base, 2×base, 4×base, ... without jitter
func newDelay(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base * 64
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
