package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/Alias1177/MatchPredictor/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	if params.SSLMode == "" {
		params.SSLMode = "disable"
	}

	// Create PostgreSQL connection string
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS match_predictions (
			id TEXT PRIMARY KEY,
			match_key TEXT NOT NULL,
			match_id TEXT,
			home_team TEXT,
			away_team TEXT,
			league_name TEXT,
			match_date TIMESTAMPTZ,
			prediction JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// tables created before match_date was stored
	_, err = db.ExecContext(ctx, `ALTER TABLE match_predictions ADD COLUMN IF NOT EXISTS match_date TIMESTAMPTZ`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS match_predictions_key_idx
		ON match_predictions (match_key, created_at DESC)
	`)
	return err
}

// InsertPrediction stores a new cache row. Older rows for the same key are
// left in place and shadowed by the newer created_at.
func (db *DB) InsertPrediction(ctx context.Context, entry models.CacheEntry) error {
	args, err := predictionRow(uuid.New().String(), entry)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO match_predictions (
			id, match_key, match_id, home_team, away_team, league_name, match_date, prediction, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, args...)

	return err
}

// predictionRow returns the INSERT arguments in column order
func predictionRow(id string, entry models.CacheEntry) ([]interface{}, error) {
	payload, err := json.Marshal(entry.Result)
	if err != nil {
		return nil, fmt.Errorf("marshaling prediction: %w", err)
	}

	var matchDate sql.NullTime
	if entry.Result.MatchDate != nil {
		matchDate = sql.NullTime{Time: *entry.Result.MatchDate, Valid: true}
	}

	r := entry.Result
	return []interface{}{
		id, entry.Key, nullString(r.MatchID), nullString(r.HomeTeam), nullString(r.AwayTeam),
		nullString(r.LeagueName), matchDate, payload, entry.CreatedAt, entry.ExpiresAt,
	}, nil
}

// LatestPrediction returns the newest unexpired row for a key, or nil if there is none
func (db *DB) LatestPrediction(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var payload []byte

	err := db.QueryRowContext(ctx, `
		SELECT match_key, prediction, created_at, expires_at
		FROM match_predictions
		WHERE match_key = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`, key, now).Scan(&entry.Key, &payload, &entry.CreatedAt, &entry.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No cached prediction
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &entry.Result); err != nil {
		return nil, fmt.Errorf("unmarshaling prediction: %w", err)
	}

	return &entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
