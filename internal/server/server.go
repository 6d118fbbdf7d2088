package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/metrics"
	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

// Predictor answers prediction queries
type Predictor interface {
	Predict(ctx context.Context, q models.PredictionQuery) (*models.PredictionResponse, error)
}

// ProviderAdmin exposes circuit breaker state
type ProviderAdmin interface {
	Status() []provider.Status
	Reset(id string) error
	ResetAll()
}

// Options configures the HTTP API
type Options struct {
	Predictor       Predictor
	Providers       ProviderAdmin
	Metrics         *metrics.Metrics // optional
	CORSOrigins     []string
	CORSCredentials bool
	RequestTimeout  time.Duration
}

// Server holds the handler dependencies
type Server struct {
	predictor Predictor
	providers ProviderAdmin
	logger    zerolog.Logger
}

// NewRouter creates the chi router with middleware and routes
func NewRouter(opts Options) http.Handler {
	s := &Server{
		predictor: opts.Predictor,
		providers: opts.Providers,
		logger:    log.With().Str("component", "http_server").Logger(),
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	c := corslib.New(corslib.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: opts.CORSCredentials,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Get("/health", s.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(opts.RequestTimeout)).Post("/predictions", s.createPrediction)

		r.Get("/providers", s.listProviders)
		r.Post("/providers/reset", s.resetAllProviders)
		r.Post("/providers/{id}/reset", s.resetProvider)
	})

	return r
}

// requestLogger logs one line per request with the chi request id
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
