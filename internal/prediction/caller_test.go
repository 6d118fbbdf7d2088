package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Alias1177/MatchPredictor/internal/metrics"
	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

// mockCompleter returns scripted responses per provider id and counts calls
type mockCompleter struct {
	mu        sync.Mutex
	responses map[string][]reply
	calls     []string
}

type reply struct {
	text string
	err  error
}

func (m *mockCompleter) Complete(ctx context.Context, p provider.Provider, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, p.ID)
	queue := m.responses[p.ID]
	if len(queue) == 0 {
		return "", fmt.Errorf("%w: no scripted reply", models.ErrTransport)
	}
	r := queue[0]
	if len(queue) > 1 {
		m.responses[p.ID] = queue[1:]
	}
	return r.text, r.err
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

const okReply = `Prediction: {"winner": "2", "winner_confidence": 61, "goals": "under_2.5", "analysis": "Away side stronger."}`

func newTestRegistry() *provider.Registry {
	return provider.NewRegistry([]provider.Provider{
		{ID: "p1", Name: "OpenRouter_1", Model: "model-a", Priority: 1},
		{ID: "p2", Name: "OpenRouter_2", Model: "model-b", Priority: 2},
	}, provider.Options{FailureThreshold: 5, Timeout: time.Minute})
}

func newTestCaller(reg *provider.Registry, c Completer) *Caller {
	return NewCaller(reg, c, CallerOptions{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		RateLimitDelay: time.Millisecond,
	})
}

var testRequest = models.PredictionRequest{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeForm: "WWDLW", AwayForm: "LLDWL"}

func TestCallForPredictionSuccess(t *testing.T) {
	reg := newTestRegistry()
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}

	got, err := newTestCaller(reg, mock).CallForPrediction(context.Background(), testRequest, 3)
	if err != nil {
		t.Fatalf("CallForPrediction() error = %v", err)
	}
	if got.Winner != models.OutcomeAway {
		t.Errorf("Winner = %v, want %v", got.Winner, models.OutcomeAway)
	}
	if got.Provider != "OpenRouter_1" || got.Model != "model-a" {
		t.Errorf("provider = %v/%v, want OpenRouter_1/model-a", got.Provider, got.Model)
	}
	if mock.callCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.callCount())
	}
}

func TestCallForPredictionRotatesOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		first reply
	}{
		{name: "missing winner", first: reply{text: `{"goals": "over_2.5", "analysis": "x"}`}},
		{name: "rate limited", first: reply{err: fmt.Errorf("%w: 429", models.ErrRateLimited)}},
		{name: "server error", first: reply{err: fmt.Errorf("%w: 502", models.ErrTransport)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			mock := &mockCompleter{responses: map[string][]reply{
				"p1": {tt.first},
				"p2": {{text: okReply}},
			}}

			got, err := newTestCaller(reg, mock).CallForPrediction(context.Background(), testRequest, 3)
			if err != nil {
				t.Fatalf("CallForPrediction() error = %v", err)
			}
			if got.Provider != "OpenRouter_2" {
				t.Errorf("Provider = %v, want OpenRouter_2", got.Provider)
			}
			if want := []string{"p1", "p2"}; fmt.Sprint(mock.calls) != fmt.Sprint(want) {
				t.Errorf("calls = %v, want %v", mock.calls, want)
			}
			if f := reg.Failures("p1"); f != 1 {
				t.Errorf("p1 failures = %d, want 1", f)
			}
			if f := reg.Failures("p2"); f != 0 {
				t.Errorf("p2 failures = %d, want 0", f)
			}
		})
	}
}

func TestCallForPredictionExhausted(t *testing.T) {
	reg := newTestRegistry()
	bad := reply{text: "no idea"}
	mock := &mockCompleter{responses: map[string][]reply{
		"p1": {bad},
		"p2": {bad},
	}}

	_, err := newTestCaller(reg, mock).CallForPrediction(context.Background(), testRequest, 3)
	if !errors.Is(err, models.ErrAllProvidersExhausted) {
		t.Fatalf("CallForPrediction() error = %v, want %v", err, models.ErrAllProvidersExhausted)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error %T is not *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(exhausted.Last, models.ErrMalformedResponse) {
		t.Errorf("Last = %v, want %v", exhausted.Last, models.ErrMalformedResponse)
	}
	if mock.callCount() != 3 {
		t.Errorf("calls = %d, want 3", mock.callCount())
	}
}

func TestCallForPredictionNoProviders(t *testing.T) {
	reg := provider.NewRegistry(nil, provider.Options{})
	mock := &mockCompleter{}

	_, err := newTestCaller(reg, mock).CallForPrediction(context.Background(), testRequest, 3)
	if !errors.Is(err, models.ErrNoProviderConfigured) {
		t.Errorf("CallForPrediction() error = %v, want %v", err, models.ErrNoProviderConfigured)
	}
	if mock.callCount() != 0 {
		t.Errorf("calls = %d, want 0", mock.callCount())
	}
}

func TestCallForPredictionInterrupted(t *testing.T) {
	tests := []struct {
		name          string
		newCtx        func() (context.Context, context.CancelFunc)
		wantExhausted bool
		wantErr       error
	}{
		{
			name: "deadline during backoff",
			newCtx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			wantExhausted: true,
			wantErr:       context.DeadlineExceeded,
		},
		{
			name: "cancelled during backoff",
			newCtx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(20*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockCompleter{responses: map[string][]reply{"p1": {{err: models.ErrTransport}}}}
			caller := NewCaller(newTestRegistry(), mock, CallerOptions{MaxRetries: 3, RetryDelay: time.Hour})

			ctx, cancel := tt.newCtx()
			defer cancel()

			_, err := caller.CallForPrediction(ctx, testRequest, 3)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CallForPrediction() error = %v, want %v", err, tt.wantErr)
			}
			if got := errors.Is(err, models.ErrAllProvidersExhausted); got != tt.wantExhausted {
				t.Errorf("exhausted = %v, want %v", got, tt.wantExhausted)
			}
		})
	}
}

// blockingCompleter never answers before its context ends
type blockingCompleter struct {
	mu    sync.Mutex
	calls []string
}

func (b *blockingCompleter) Complete(ctx context.Context, p provider.Provider, system, user string) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, p.ID)
	b.mu.Unlock()

	<-ctx.Done()
	return "", fmt.Errorf("%w: %w", models.ErrTransport, ctx.Err())
}

func TestCallForPredictionAttemptTimeout(t *testing.T) {
	reg := newTestRegistry()
	m := metrics.New()
	blocking := &blockingCompleter{}
	caller := NewCaller(reg, blocking, CallerOptions{
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		RateLimitDelay: time.Millisecond,
		AttemptTimeout: 20 * time.Millisecond,
		Metrics:        m,
	})

	_, err := caller.CallForPrediction(context.Background(), testRequest, 2)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("CallForPrediction() error = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exhausted.Attempts)
	}
	if want := []string{"p1", "p2"}; fmt.Sprint(blocking.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", blocking.calls, want)
	}
	if got := testutil.ToFloat64(m.ProviderFailures.WithLabelValues("p1", "timeout")); got != 1 {
		t.Errorf("p1 timeout failures = %v, want 1", got)
	}
	if f := reg.Failures("p1"); f != 1 {
		t.Errorf("p1 failures = %d, want 1", f)
	}
}

func TestCallForPredictionParentDeadline(t *testing.T) {
	reg := newTestRegistry()
	blocking := &blockingCompleter{}
	caller := NewCaller(reg, blocking, CallerOptions{MaxRetries: 3, AttemptTimeout: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := caller.CallForPrediction(ctx, testRequest, 3)
	if !errors.Is(err, models.ErrAllProvidersExhausted) {
		t.Fatalf("CallForPrediction() error = %v, want %v", err, models.ErrAllProvidersExhausted)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CallForPrediction() error = %v, want it to wrap %v", err, context.DeadlineExceeded)
	}
	if f := reg.Failures("p1"); f != 0 {
		t.Errorf("p1 failures = %d, want 0", f)
	}
}

func TestCallerBudget(t *testing.T) {
	tests := []struct {
		name string
		opts CallerOptions
		want time.Duration
	}{
		{
			name: "defaults",
			opts: CallerOptions{},
			want: 3*60*time.Second + 2*time.Second + 4*time.Second,
		},
		{
			name: "single attempt",
			opts: CallerOptions{MaxRetries: 1, AttemptTimeout: 10 * time.Second},
			want: 10 * time.Second,
		},
		{
			name: "retry delay above rate limit delay",
			opts: CallerOptions{MaxRetries: 3, AttemptTimeout: time.Second, RetryDelay: 5 * time.Second, RateLimitDelay: time.Second},
			want: 3*time.Second + 5*time.Second + 10*time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewCaller(newTestRegistry(), &mockCompleter{}, tt.opts).Budget(); got != tt.want {
				t.Errorf("Budget() = %v, want %v", got, tt.want)
			}
		})
	}
}
