package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/models"
)

// ErrUnknownProvider is returned by Reset for an id that is not registered
var ErrUnknownProvider = errors.New("unknown provider")

const (
	DefaultFailureThreshold = 5
	DefaultTimeout          = 60 * time.Second
)

// Provider is a completion endpoint credential plus model selection
type Provider struct {
	ID          string
	Name        string
	APIKey      string
	Model       string
	Priority    int
	Temperature float32
	MaxTokens   int
}

// State is the circuit state of a provider
type State string

const (
	StateActive      State = "active"
	StateCircuitOpen State = "circuit_open"
)

// Status is a read-only snapshot of a provider's health
type Status struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Priority int       `json:"priority"`
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	ReopenAt time.Time `json:"reopen_at,omitempty"`
}

// Options holds breaker settings for a Registry
type Options struct {
	FailureThreshold int
	Timeout          time.Duration
	Now              func() time.Time
	// OnStateChange is called outside the lock whenever a circuit opens or closes.
	OnStateChange func(id string, open bool)
}

type health struct {
	failures int
	open     bool
	reopenAt time.Time
}

// Registry holds providers in priority order together with their breaker state
type Registry struct {
	mu        sync.Mutex
	providers []Provider
	health    map[string]*health
	opts      Options
	logger    zerolog.Logger
}

// NewRegistry creates a registry. An empty provider list is allowed;
// Select then fails with models.ErrNoProviderConfigured.
func NewRegistry(providers []Provider, opts Options) *Registry {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sorted := make([]Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	h := make(map[string]*health, len(sorted))
	for i := range sorted {
		if sorted[i].ID == "" {
			sorted[i].ID = fmt.Sprintf("provider_%d", i+1)
		}
		h[sorted[i].ID] = &health{}
	}

	return &Registry{
		providers: sorted,
		health:    h,
		opts:      opts,
		logger:    log.With().Str("component", "provider_registry").Logger(),
	}
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.providers)
}

// Select returns the highest-priority provider whose circuit is not open.
// When every circuit is open all of them are reset and the first provider is returned.
func (r *Registry) Select() (Provider, error) {
	return r.SelectExcept(nil)
}

// SelectExcept behaves like Select but prefers providers not present in tried.
func (r *Registry) SelectExcept(tried map[string]bool) (Provider, error) {
	r.mu.Lock()

	if len(r.providers) == 0 {
		r.mu.Unlock()
		return Provider{}, models.ErrNoProviderConfigured
	}

	now := r.opts.Now()
	lapsed := r.expire(now)
	defer r.notify(lapsed, false)

	var firstHealthy *Provider
	for i := range r.providers {
		p := &r.providers[i]
		if r.isOpen(p.ID, now) {
			continue
		}
		if firstHealthy == nil {
			firstHealthy = p
		}
		if !tried[p.ID] {
			r.mu.Unlock()
			return *p, nil
		}
	}
	if firstHealthy != nil {
		r.mu.Unlock()
		return *firstHealthy, nil
	}

	var closed []string
	for _, p := range r.providers {
		h := r.health[p.ID]
		if h.open {
			closed = append(closed, p.ID)
		}
		*h = health{}
	}
	first := r.providers[0]
	r.mu.Unlock()

	r.logger.Warn().Int("providers", len(r.providers)).Msg("All circuits open, forcing reset")
	r.notify(closed, false)
	return first, nil
}

// RecordFailure counts a failed call. Reaching the threshold opens the circuit
// for the configured timeout and resets the counter.
func (r *Registry) RecordFailure(id string) {
	r.mu.Lock()
	h, ok := r.health[id]
	if !ok {
		r.mu.Unlock()
		return
	}

	h.failures++
	opened := false
	if h.failures >= r.opts.FailureThreshold {
		h.open = true
		h.reopenAt = r.opts.Now().Add(r.opts.Timeout)
		h.failures = 0
		opened = true
	}
	reopenAt := h.reopenAt
	r.mu.Unlock()

	if opened {
		r.logger.Warn().Str("provider", id).Time("reopen_at", reopenAt).Msg("Circuit opened")
		r.notify([]string{id}, true)
	}
}

// RecordSuccess resets the failure counter and closes the circuit
func (r *Registry) RecordSuccess(id string) {
	r.mu.Lock()
	h, ok := r.health[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	wasOpen := h.open
	*h = health{}
	r.mu.Unlock()

	if wasOpen {
		r.notify([]string{id}, false)
	}
}

// Failures returns the current consecutive failure count of a provider
func (r *Registry) Failures(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.health[id]; ok {
		return h.failures
	}
	return 0
}

// Status returns a snapshot of every provider in priority order
func (r *Registry) Status() []Status {
	r.mu.Lock()
	now := r.opts.Now()
	lapsed := r.expire(now)
	out := make([]Status, 0, len(r.providers))
	for _, p := range r.providers {
		h := r.health[p.ID]
		st := Status{
			ID:       p.ID,
			Name:     p.Name,
			Model:    p.Model,
			Priority: p.Priority,
			State:    StateActive,
			Failures: h.failures,
		}
		if r.isOpen(p.ID, now) {
			st.State = StateCircuitOpen
			st.ReopenAt = h.reopenAt
		}
		out = append(out, st)
	}
	r.mu.Unlock()

	r.notify(lapsed, false)
	return out
}

// Reset clears the breaker of a single provider
func (r *Registry) Reset(id string) error {
	r.mu.Lock()
	h, ok := r.health[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	wasOpen := h.open
	*h = health{}
	r.mu.Unlock()

	r.logger.Info().Str("provider", id).Msg("Provider reset")
	if wasOpen {
		r.notify([]string{id}, false)
	}
	return nil
}

// ResetAll clears every breaker
func (r *Registry) ResetAll() {
	r.mu.Lock()
	var closed []string
	for id, h := range r.health {
		if h.open {
			closed = append(closed, id)
		}
		*h = health{}
	}
	r.mu.Unlock()

	r.logger.Info().Msg("All providers reset")
	r.notify(closed, false)
}

// expire closes circuits whose timeout has passed and returns their ids.
// It must be called with r.mu held.
func (r *Registry) expire(now time.Time) []string {
	var lapsed []string
	for _, p := range r.providers {
		h := r.health[p.ID]
		if h.open && !now.Before(h.reopenAt) {
			h.open = false
			h.reopenAt = time.Time{}
			lapsed = append(lapsed, p.ID)
		}
	}
	return lapsed
}

// isOpen must be called with r.mu held
func (r *Registry) isOpen(id string, now time.Time) bool {
	h := r.health[id]
	return h.open && now.Before(h.reopenAt)
}

func (r *Registry) notify(ids []string, open bool) {
	if r.opts.OnStateChange == nil {
		return
	}
	for _, id := range ids {
		r.opts.OnStateChange(id, open)
	}
}
