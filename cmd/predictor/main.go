// Command predictor serves and runs AI football match predictions.
//
// Usage:
//
//	predictor serve
//	predictor predict --match-id 1035
//	predictor predict --home Arsenal --away Chelsea --league "Premier League" --date 2026-10-24
//	predictor warm --league 39 --season 2026 --next 10
//	predictor providers
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/MatchPredictor/internal/app"
	"github.com/Alias1177/MatchPredictor/internal/config"
	"github.com/Alias1177/MatchPredictor/models"
)

func main() {
	root := &cobra.Command{
		Use:           "predictor",
		Short:         "AI football match predictions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(warmCmd())
	root.AddCommand(providersCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.HTTPAddr
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           a.Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					log.Info().Str("addr", addr).Msg("HTTP API listening")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()

				select {
				case err := <-errCh:
					return fmt.Errorf("http server: %w", err)
				case <-ctx.Done():
				}

				log.Info().Msg("Shutdown signal received, draining connections")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				log.Info().Msg("HTTP API stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default HTTP_ADDR)")
	return cmd
}

func predictCmd() *cobra.Command {
	var q models.PredictionQuery
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a single match and print the JSON response",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app.App) error {
				resp, err := a.Service.Predict(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	cmd.Flags().StringVar(&q.MatchID, "match-id", "", "API-Football fixture id")
	cmd.Flags().StringVar(&q.HomeTeam, "home", "", "Home team")
	cmd.Flags().StringVar(&q.AwayTeam, "away", "", "Away team")
	cmd.Flags().StringVar(&q.LeagueName, "league", "", "League name")
	cmd.Flags().StringVar(&q.MatchDate, "date", "", "Match date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.HomeForm, "home-form", "", "Home form letters, most recent first (e.g. WWDLW)")
	cmd.Flags().StringVar(&q.AwayForm, "away-form", "", "Away form letters, most recent first")
	return cmd
}

func warmCmd() *cobra.Command {
	var league, season, next int
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Generate predictions for a league's upcoming fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app.App) error {
				if a.Football == nil {
					return fmt.Errorf("FOOTBALL_API_KEY is required")
				}

				fixtures, err := a.Football.GetUpcomingFixtures(ctx, league, season, next)
				if err != nil {
					return fmt.Errorf("fetching fixtures: %w", err)
				}
				log.Info().Int("league", league).Int("season", season).Int("fixtures", len(fixtures)).Msg("Warming predictions")

				queries := make([]models.PredictionQuery, 0, len(fixtures))
				for _, f := range fixtures {
					queries = append(queries, models.PredictionQuery{
						MatchID:    strconv.Itoa(f.Fixture.ID),
						HomeTeam:   f.Teams.Home.Name,
						AwayTeam:   f.Teams.Away.Name,
						LeagueName: f.League.Name,
						MatchDate:  f.Fixture.Date.Format(time.RFC3339),
					})
				}

				return printJSON(a.Service.WarmUp(ctx, queries))
			})
		},
	}
	cmd.Flags().IntVar(&league, "league", 39, "League id (39=PL, 140=La Liga, 135=Serie A, 78=Bundesliga, 61=Ligue 1, 203=Super Lig)")
	cmd.Flags().IntVar(&season, "season", time.Now().Year(), "Season year")
	cmd.Flags().IntVar(&next, "next", 10, "Number of upcoming fixtures")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Print configured providers and their circuit state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(ctx context.Context, a *app.App) error {
				return printJSON(a.Registry.Status())
			})
		},
	}
}

// runApp loads config, builds the application and cancels on SIGINT/SIGTERM
func runApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
