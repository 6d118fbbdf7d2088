package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/api/apifootball"
	"github.com/Alias1177/MatchPredictor/internal/api/openrouter"
	"github.com/Alias1177/MatchPredictor/internal/cache"
	"github.com/Alias1177/MatchPredictor/internal/config"
	"github.com/Alias1177/MatchPredictor/internal/database"
	"github.com/Alias1177/MatchPredictor/internal/metrics"
	"github.com/Alias1177/MatchPredictor/internal/prediction"
	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/internal/server"
)

// predictSlack covers the fixture lookup and cache round trips on top of the AI budget
const predictSlack = 30 * time.Second

// App wires every component once. Front-ends share it instead of building their own.
type App struct {
	Config   *config.Config
	Registry *provider.Registry
	Metrics  *metrics.Metrics
	Football *apifootball.Client // nil without FOOTBALL_API_KEY
	Service  *prediction.Service
	// PredictTimeout bounds one prediction request: every AI attempt timing out plus slack
	PredictTimeout time.Duration
	db             *database.DB
	redis          *redis.Client
}

// New builds the application from configuration
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	a.Registry = provider.NewRegistry(cfg.Providers, provider.Options{
		FailureThreshold: cfg.CircuitFailureThreshold,
		Timeout:          cfg.CircuitTimeout,
		OnStateChange:    a.Metrics.SetCircuitOpen,
	})

	completer := openrouter.NewClient(openrouter.ClientOptions{
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.OpenRouterReferer,
		Title:   cfg.OpenRouterTitle,
		Timeout: cfg.OpenRouterTimeout,
		TopP:    float32(cfg.TopP),
	})

	caller := prediction.NewCaller(a.Registry, completer, prediction.CallerOptions{
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		RateLimitDelay: cfg.RateLimitDelay,
		AttemptTimeout: cfg.OpenRouterTimeout,
		Metrics:        a.Metrics,
	})
	a.PredictTimeout = caller.Budget() + predictSlack

	store, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var matches prediction.MatchSource
	if cfg.FootballAPIKey != "" {
		a.Football = apifootball.NewClient(apifootball.ClientOptions{
			APIKey:         cfg.FootballAPIKey,
			Host:           cfg.FootballAPIHost,
			BaseURL:        cfg.FootballBaseURL,
			RequestTimeout: cfg.RequestTimeout,
			MinDelay:       cfg.APIMinDelay,
			MaxRetries:     cfg.APIMaxRetries,
			BackoffBase:    cfg.APIBackoffBase,
		})
		matches = a.Football
	} else {
		log.Warn().Msg("FOOTBALL_API_KEY not set, fixture lookups are disabled")
	}

	a.Service = prediction.NewService(caller, store, prediction.ServiceOptions{
		CacheTTL:   cfg.CacheTTL,
		MaxRetries: cfg.MaxRetries,
		BatchDelay: cfg.BatchDelay,
		Matches:    matches,
		Metrics:    a.Metrics,
	})

	log.Info().Int("providers", a.Registry.Len()).Str("cache", cfg.CacheBackend).
		Bool("fixtures", a.Football != nil).Dur("predict_timeout", a.PredictTimeout).Msg("Application initialized")
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Store, error) {
	switch a.Config.CacheBackend {
	case "postgres":
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     a.Config.DBHost,
			Port:     a.Config.DBPort,
			User:     a.Config.DBUser,
			Password: a.Config.DBPassword,
			DBName:   a.Config.DBName,
			SSLMode:  a.Config.DBSSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.db = db
		return cache.NewPostgresStore(db), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPass,
			DB:       a.Config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.redis = client
		return cache.NewRedisStore(client), nil

	default:
		return cache.NewMemoryStore(nil), nil
	}
}

// Handler returns the HTTP API router
func (a *App) Handler() http.Handler {
	return server.NewRouter(server.Options{
		Predictor:       a.Service,
		Providers:       a.Registry,
		Metrics:         a.Metrics,
		CORSOrigins:     a.Config.CORSOrigins,
		CORSCredentials: a.Config.CORSCredentials,
		RequestTimeout:  a.PredictTimeout,
	})
}

// Close releases the database, redis and the data API queue
func (a *App) Close() {
	if a.Football != nil {
		a.Football.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing redis")
		}
	}
}
