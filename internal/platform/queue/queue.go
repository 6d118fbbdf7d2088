package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultMinDelay is the default gap between two job starts
const DefaultMinDelay = time.Second

// ErrClosed is returned when enqueueing on a closed queue
var ErrClosed = errors.New("queue closed")

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Queue runs jobs one at a time in FIFO order with at least minDelay
// between the start of consecutive jobs.
type Queue struct {
	minDelay  time.Duration
	limiter   *rate.Limiter
	jobs      chan job
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastStart time.Time
	logger    zerolog.Logger
}

// New creates a queue and starts its worker
func New(minDelay time.Duration) *Queue {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}

	q := &Queue{
		minDelay: minDelay,
		limiter:  rate.NewLimiter(rate.Every(minDelay), 1),
		jobs:     make(chan job, 64),
		stop:     make(chan struct{}),
		logger:   log.With().Str("component", "request_queue").Logger(),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// MinDelay returns the configured gap between job starts
func (q *Queue) MinDelay() time.Duration {
	return q.minDelay
}

// Enqueue blocks until fn has run and returns its error.
// fn is skipped if ctx is done before its turn comes.
func (q *Queue) Enqueue(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-q.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- j:
	}

	select {
	case err := <-j.done:
		return err
	case <-q.stop:
		return ErrClosed
	}
}

// Do runs fn through the queue and returns its value
func Do[T any](ctx context.Context, q *Queue, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := q.Enqueue(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close stops the worker. Pending jobs fail with ErrClosed.
func (q *Queue) Close() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stop:
			return
		case j := <-q.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			if err := q.wait(j.ctx); err != nil {
				j.done <- err
				continue
			}
			q.lastStart = time.Now()
			j.done <- j.fn(j.ctx)
		}
	}
}

// wait paces the next start. The limiter timer may fire early relative to the
// previous start, so the remaining gap is measured from lastStart as well.
func (q *Queue) wait(ctx context.Context) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}
	if q.lastStart.IsZero() {
		return nil
	}

	remaining := q.minDelay - time.Since(q.lastStart)
	if remaining <= 0 {
		return nil
	}

	q.logger.Debug().Dur("delay", remaining).Msg("Pacing request")
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return ErrClosed
	}
}
