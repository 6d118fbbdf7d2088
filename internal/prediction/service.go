package prediction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/cache"
	"github.com/Alias1177/MatchPredictor/internal/metrics"
	"github.com/Alias1177/MatchPredictor/models"
)

// MatchSource loads the prediction context of a fixture
type MatchSource interface {
	LoadMatch(ctx context.Context, fixtureID int) (*models.PredictionRequest, error)
}

// PredictionCaller produces an AI prediction for a request
type PredictionCaller interface {
	CallForPrediction(ctx context.Context, req models.PredictionRequest, maxRetries int) (*models.PredictionResult, error)
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	CacheTTL   time.Duration
	MaxRetries int
	BatchDelay time.Duration
	Matches    MatchSource // optional
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Service answers prediction queries from cache, the AI providers or the fallback
type Service struct {
	caller PredictionCaller
	store  cache.Store
	opts   ServiceOptions
	logger zerolog.Logger
}

// WarmSummary counts the outcomes of a WarmUp run
type WarmSummary struct {
	Total     int `json:"total"`
	Cached    int `json:"cached"`
	Generated int `json:"generated"`
	Fallback  int `json:"fallback"`
	Failed    int `json:"failed"`
}

// NewService creates a Service
func NewService(caller PredictionCaller, store cache.Store, opts ServiceOptions) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		caller: caller,
		store:  store,
		opts:   opts,
		logger: log.With().Str("component", "prediction_service").Logger(),
	}
}

// Predict returns a prediction for the query. Provider failures never reach
// the caller: they end in a form-based fallback instead.
func (s *Service) Predict(ctx context.Context, q models.PredictionQuery) (*models.PredictionResponse, error) {
	q = trimQuery(q)
	if q.MatchID == "" && (q.HomeTeam == "" || q.AwayTeam == "") {
		return nil, fmt.Errorf("%w: matchId or homeTeam and awayTeam are required", models.ErrInvalidQuery)
	}

	start := s.opts.Now()
	key := cache.MatchKey(q.MatchID, q.HomeTeam, q.AwayTeam, q.MatchDate)
	logger := s.logger.With().Str("key", key).Logger()

	if cached := s.lookup(ctx, key, logger); cached != nil {
		s.opts.Metrics.RecordPrediction(models.SourceCache, string(cached.Winner), s.opts.Now().Sub(start))
		return &models.PredictionResponse{Success: true, Data: cached, Source: models.SourceCache}, nil
	}

	req, err := s.buildRequest(ctx, q, logger)
	if err != nil {
		return nil, err
	}

	result, err := s.caller.CallForPrediction(ctx, *req, s.opts.MaxRetries)
	var exhausted *ExhaustedError
	switch {
	case err == nil:
		s.stamp(result, req)
		if err := s.store.Put(ctx, key, result, s.opts.CacheTTL); err != nil {
			logger.Error().Err(err).Msg("Failed to cache prediction")
		}
		logger.Info().Str("winner", string(result.Winner)).Int("confidence", result.WinnerConfidence).
			Str("provider", result.Provider).Msg("Prediction generated")

	case errors.As(err, &exhausted):
		logger.Warn().Err(exhausted.Last).Int("attempts", exhausted.Attempts).Msg("All providers failed, using fallback")
		result = s.fallback(req)

	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("Prediction deadline reached, using fallback")
		result = s.fallback(req)

	default:
		return nil, err
	}

	s.opts.Metrics.RecordPrediction(models.SourceLLM, string(result.Winner), s.opts.Now().Sub(start))
	return &models.PredictionResponse{Success: true, Data: result, Source: models.SourceLLM}, nil
}

// WarmUp predicts each query in turn, pausing BatchDelay between matches
func (s *Service) WarmUp(ctx context.Context, queries []models.PredictionQuery) WarmSummary {
	summary := WarmSummary{Total: len(queries)}

	for i, q := range queries {
		if i > 0 && s.opts.BatchDelay > 0 {
			if err := sleep(ctx, s.opts.BatchDelay); err != nil {
				summary.Failed += len(queries) - i
				break
			}
		}

		resp, err := s.Predict(ctx, q)
		switch {
		case err != nil:
			summary.Failed++
			s.logger.Error().Err(err).Str("match_id", q.MatchID).Str("home", q.HomeTeam).
				Str("away", q.AwayTeam).Msg("Warm-up prediction failed")
		case resp.Source == models.SourceCache:
			summary.Cached++
		case resp.Data.Fallback:
			summary.Fallback++
		default:
			summary.Generated++
		}
	}

	s.logger.Info().Int("total", summary.Total).Int("cached", summary.Cached).Int("generated", summary.Generated).
		Int("fallback", summary.Fallback).Int("failed", summary.Failed).Msg("Warm-up finished")
	return summary
}

func (s *Service) lookup(ctx context.Context, key string, logger zerolog.Logger) *models.PredictionResult {
	result, ok, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Cache read failed, treating as miss")
		s.opts.Metrics.RecordCacheLookup("error")
		return nil
	case !ok:
		s.opts.Metrics.RecordCacheLookup("miss")
		return nil
	}
	logger.Debug().Msg("Cache hit")
	s.opts.Metrics.RecordCacheLookup("hit")
	return result
}

// buildRequest loads the fixture when the match id is numeric. Only a
// missing fixture is final; other lookup failures fall back to the
// team names and form given in the query.
func (s *Service) buildRequest(ctx context.Context, q models.PredictionQuery, logger zerolog.Logger) (*models.PredictionRequest, error) {
	if fixtureID, err := strconv.Atoi(q.MatchID); err == nil && s.opts.Matches != nil {
		req, err := s.opts.Matches.LoadMatch(ctx, fixtureID)
		switch {
		case err == nil:
			return req, nil
		case errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("loading fixture %d: %w", fixtureID, err)
		case q.HomeTeam == "" || q.AwayTeam == "":
			return nil, fmt.Errorf("loading fixture %d: %w", fixtureID, err)
		}
		logger.Warn().Err(err).Int("fixture_id", fixtureID).Msg("Fixture lookup failed, using query teams")
	}

	if q.HomeTeam == "" || q.AwayTeam == "" {
		return nil, fmt.Errorf("%w: fixture lookup unavailable for match %q", models.ErrInvalidQuery, q.MatchID)
	}

	return &models.PredictionRequest{
		MatchID:    q.MatchID,
		HomeTeam:   q.HomeTeam,
		AwayTeam:   q.AwayTeam,
		LeagueName: q.LeagueName,
		MatchDate:  parseMatchDate(q.MatchDate),
		HomeForm:   q.HomeForm,
		AwayForm:   q.AwayForm,
	}, nil
}

func (s *Service) fallback(req *models.PredictionRequest) *models.PredictionResult {
	fb := Fallback(*req)
	s.stamp(&fb, req)
	s.opts.Metrics.RecordFallback()
	return &fb
}

func (s *Service) stamp(result *models.PredictionResult, req *models.PredictionRequest) {
	now := s.opts.Now()
	result.ID = uuid.NewString()
	result.MatchID = req.MatchID
	if result.MatchID == "" {
		result.MatchID = fmt.Sprintf("manual_%d", now.UnixMilli())
	}
	result.HomeTeam = req.HomeTeam
	result.AwayTeam = req.AwayTeam
	result.LeagueName = req.LeagueName
	result.MatchDate = nil
	if !req.MatchDate.IsZero() {
		d := req.MatchDate
		result.MatchDate = &d
	}
	result.CreatedAt = now
}

func trimQuery(q models.PredictionQuery) models.PredictionQuery {
	q.MatchID = strings.TrimSpace(q.MatchID)
	q.HomeTeam = strings.TrimSpace(q.HomeTeam)
	q.AwayTeam = strings.TrimSpace(q.AwayTeam)
	q.LeagueName = strings.TrimSpace(q.LeagueName)
	q.MatchDate = strings.TrimSpace(q.MatchDate)
	q.HomeForm = strings.ToUpper(strings.TrimSpace(q.HomeForm))
	q.AwayForm = strings.ToUpper(strings.TrimSpace(q.AwayForm))
	return q
}

// parseMatchDate accepts RFC3339 or YYYY-MM-DD; anything else is left unset
func parseMatchDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
