package apifootball

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpClient "github.com/Alias1177/MatchPredictor/internal/platform/http"
	"github.com/Alias1177/MatchPredictor/models"
)

const (
	DefaultBaseURL = "https://api-football-v1.p.rapidapi.com/v3"
	DefaultHost    = "api-football-v1.p.rapidapi.com"

	// bookmaker 8 is Bet365
	defaultBookmaker  = 8
	betMatchWinner    = 1
	betGoalsOverUnder = 5
)

// Client is the API-Football client
type Client struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new API-Football client
type ClientOptions struct {
	APIKey         string
	Host           string
	BaseURL        string
	RequestTimeout time.Duration
	MinDelay       time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
}

// NewClient creates a new API-Football client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:     options.RequestTimeout,
		MinDelay:    options.MinDelay,
		MaxRetries:  options.MaxRetries,
		BackoffBase: options.BackoffBase,
	}

	// Apply defaults if not set
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.Host == "" {
		options.Host = DefaultHost
	}

	return &Client{
		apiKey:     options.APIKey,
		host:       options.Host,
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "apifootball_client").Logger(),
	}
}

// Close stops the request queue
func (c *Client) Close() {
	c.httpClient.Close()
}

// get performs a queued GET and decodes the response envelope
func get[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	u := c.baseURL + "/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	c.logger.Debug().Str("path", path).Str("query", params.Encode()).Msg("Fetching")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	body, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error().Err(err).Str("response", truncate(string(body), 300)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if apiErr := envelopeError(env.Errors); apiErr != "" {
		c.logger.Error().Str("path", path).Str("errors", apiErr).Msg("API-Football error")
		return nil, fmt.Errorf("%w: API-Football error: %s", models.ErrTransport, apiErr)
	}

	return env.Response, nil
}

// GetFixture fetches a single fixture by id
func (c *Client) GetFixture(ctx context.Context, fixtureID int) (*Fixture, error) {
	fixtures, err := get[Fixture](ctx, c, "fixtures", url.Values{"id": {strconv.Itoa(fixtureID)}})
	if err != nil {
		return nil, err
	}
	if len(fixtures) == 0 {
		return nil, fmt.Errorf("%w: fixture %d", models.ErrNotFound, fixtureID)
	}
	return &fixtures[0], nil
}

// GetUpcomingFixtures fetches the next fixtures of a league
func (c *Client) GetUpcomingFixtures(ctx context.Context, league, season, next int) ([]Fixture, error) {
	return get[Fixture](ctx, c, "fixtures", url.Values{
		"league": {strconv.Itoa(league)},
		"season": {strconv.Itoa(season)},
		"next":   {strconv.Itoa(next)},
	})
}

// GetTeamForm returns W/D/L letters for the team's last finished fixtures, most recent first
func (c *Client) GetTeamForm(ctx context.Context, teamID, last int) (string, error) {
	fixtures, err := get[Fixture](ctx, c, "fixtures", url.Values{
		"team": {strconv.Itoa(teamID)},
		"last": {strconv.Itoa(last)},
	})
	if err != nil {
		return "", err
	}

	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].Fixture.Date.After(fixtures[j].Fixture.Date)
	})

	var sb strings.Builder
	for _, f := range fixtures {
		if !f.Finished() {
			continue
		}
		sb.WriteByte(resultLetter(f, teamID))
	}
	return sb.String(), nil
}

// GetHeadToHead fetches the last meetings of two teams, most recent first
func (c *Client) GetHeadToHead(ctx context.Context, homeID, awayID, last int) ([]models.HeadToHead, error) {
	fixtures, err := get[Fixture](ctx, c, "fixtures/headtohead", url.Values{
		"h2h":  {fmt.Sprintf("%d-%d", homeID, awayID)},
		"last": {strconv.Itoa(last)},
	})
	if err != nil {
		return nil, err
	}

	var out []models.HeadToHead
	for _, f := range fixtures {
		if !f.Finished() {
			continue
		}
		out = append(out, models.HeadToHead{
			Date:      f.Fixture.Date,
			HomeTeam:  f.Teams.Home.Name,
			AwayTeam:  f.Teams.Away.Name,
			HomeGoals: *f.Goals.Home,
			AwayGoals: *f.Goals.Away,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// GetOdds fetches match winner and over/under 2.5 odds. It returns nil when no odds are published.
func (c *Client) GetOdds(ctx context.Context, fixtureID int) (*models.Odds, error) {
	resp, err := get[oddsResponse](ctx, c, "odds", url.Values{
		"fixture":   {strconv.Itoa(fixtureID)},
		"bookmaker": {strconv.Itoa(defaultBookmaker)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || len(resp[0].Bookmakers) == 0 {
		return nil, nil
	}

	bm := resp[0].Bookmakers[0]
	odds := &models.Odds{Bookmaker: bm.Name}
	found := false
	for _, bet := range bm.Bets {
		for _, v := range bet.Values {
			d, err := decimal.NewFromString(v.Odd)
			if err != nil {
				continue
			}
			switch {
			case bet.ID == betMatchWinner && v.Value == "Home":
				odds.Home, found = d, true
			case bet.ID == betMatchWinner && v.Value == "Draw":
				odds.Draw, found = d, true
			case bet.ID == betMatchWinner && v.Value == "Away":
				odds.Away, found = d, true
			case bet.ID == betGoalsOverUnder && v.Value == "Over 2.5":
				odds.Over25, found = d, true
			case bet.ID == betGoalsOverUnder && v.Value == "Under 2.5":
				odds.Under25, found = d, true
			}
		}
	}
	if !found {
		return nil, nil
	}
	return odds, nil
}

// GetStatistics fetches fixture statistics. It returns nil before kick-off.
func (c *Client) GetStatistics(ctx context.Context, fixtureID, homeID int) (*models.MatchStats, error) {
	resp, err := get[teamStatistics](ctx, c, "fixtures/statistics", url.Values{"fixture": {strconv.Itoa(fixtureID)}})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, nil
	}

	stats := &models.MatchStats{}
	for _, ts := range resp {
		home := ts.Team.ID == homeID
		for _, s := range ts.Statistics {
			v := statValue(s.Value)
			switch s.Type {
			case "Total Shots":
				setSide(home, &stats.HomeShotsTotal, &stats.AwayShotsTotal, v)
			case "Shots on Goal":
				setSide(home, &stats.HomeShotsOn, &stats.AwayShotsOn, v)
			case "Ball Possession":
				setSide(home, &stats.HomePossession, &stats.AwayPossession, v)
			case "Fouls":
				setSide(home, &stats.HomeFouls, &stats.AwayFouls, v)
			case "Corner Kicks":
				setSide(home, &stats.HomeCorners, &stats.AwayCorners, v)
			}
		}
	}
	return stats, nil
}

// LoadMatch assembles the prediction context for a fixture. Only the fixture
// itself is required; form, head-to-head, odds and statistics are best effort.
func (c *Client) LoadMatch(ctx context.Context, fixtureID int) (*models.PredictionRequest, error) {
	f, err := c.GetFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	req := &models.PredictionRequest{
		MatchID:    strconv.Itoa(f.Fixture.ID),
		HomeTeam:   f.Teams.Home.Name,
		AwayTeam:   f.Teams.Away.Name,
		LeagueName: f.League.Name,
		MatchDate:  f.Fixture.Date,
	}
	logger := c.logger.With().Int("fixture", fixtureID).Logger()

	if req.HomeForm, err = c.GetTeamForm(ctx, f.Teams.Home.ID, 5); err != nil {
		logger.Warn().Err(err).Msg("Home form unavailable")
	}
	if req.AwayForm, err = c.GetTeamForm(ctx, f.Teams.Away.ID, 5); err != nil {
		logger.Warn().Err(err).Msg("Away form unavailable")
	}
	if req.HeadToHead, err = c.GetHeadToHead(ctx, f.Teams.Home.ID, f.Teams.Away.ID, 5); err != nil {
		logger.Warn().Err(err).Msg("Head-to-head unavailable")
	}
	if req.Odds, err = c.GetOdds(ctx, fixtureID); err != nil {
		logger.Warn().Err(err).Msg("Odds unavailable")
	}
	if f.Started() {
		if req.Stats, err = c.GetStatistics(ctx, fixtureID, f.Teams.Home.ID); err != nil {
			logger.Warn().Err(err).Msg("Statistics unavailable")
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return req, nil
}

func resultLetter(f Fixture, teamID int) byte {
	home, away := *f.Goals.Home, *f.Goals.Away
	if f.Teams.Away.ID == teamID {
		home, away = away, home
	}
	switch {
	case home > away:
		return 'W'
	case home < away:
		return 'L'
	default:
		return 'D'
	}
}

func setSide(home bool, h, a *int, v int) {
	if home {
		*h = v
	} else {
		*a = v
	}
}

// envelopeError flattens the "errors" field, which is [] when empty and an object otherwise
func envelopeError(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "[]" || s == "{}" || s == "null" {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
