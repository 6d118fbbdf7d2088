package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Alias1177/MatchPredictor/models"
)

// MemoryStore is an in-process Store. Entries are dropped only when overwritten.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]models.CacheEntry),
		now:     now,
	}
}

// Get returns a copy of the cached result if it has not expired
func (s *MemoryStore) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.ExpiresAt) {
		return nil, false, nil
	}
	result := cloneResult(&e.Result)
	return &result, true, nil
}

// Put stores result under key for ttl
func (s *MemoryStore) Put(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	s.entries[key] = models.CacheEntry{
		Key:       key,
		Result:    cloneResult(result),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cloneResult copies the slices so callers never share arrays with a stored entry
func cloneResult(r *models.PredictionResult) models.PredictionResult {
	c := *r
	if r.MatchDate != nil {
		d := *r.MatchDate
		c.MatchDate = &d
	}
	c.RiskFactors = slices.Clone(r.RiskFactors)
	c.KeyInsights = slices.Clone(r.KeyInsights)
	c.RecommendedBets = slices.Clone(r.RecommendedBets)
	return c
}
