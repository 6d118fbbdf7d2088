package cache

import (
	"context"
	"time"

	"github.com/Alias1177/MatchPredictor/internal/database"
	"github.com/Alias1177/MatchPredictor/models"
)

// PostgresStore keeps predictions in the match_predictions table
type PostgresStore struct {
	db  *database.DB
	now func() time.Time
}

// NewPostgresStore wraps an open database
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	entry, err := s.db.LatestPrediction(ctx, key, s.now())
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	return &entry.Result, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error {
	now := s.now()
	return s.db.InsertPrediction(ctx, models.CacheEntry{
		Key:       key,
		Result:    *result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}
