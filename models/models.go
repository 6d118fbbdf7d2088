package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the predicted match result
type Outcome string

const (
	OutcomeHome Outcome = "HOME"
	OutcomeDraw Outcome = "DRAW"
	OutcomeAway Outcome = "AWAY"
)

// GoalsLine is the over/under 2.5 goals selection
type GoalsLine string

const (
	GoalsOver  GoalsLine = "over_2.5"
	GoalsUnder GoalsLine = "under_2.5"
)

// BTTS is the both-teams-to-score selection
type BTTS string

const (
	BTTSYes BTTS = "yes"
	BTTSNo  BTTS = "no"
)

// Response sources
const (
	SourceCache = "cache"
	SourceLLM   = "llm"
)

// MatchStats holds per-team statistics of a fixture, home first
type MatchStats struct {
	HomeShotsTotal int `json:"home_shots_total"`
	AwayShotsTotal int `json:"away_shots_total"`
	HomeShotsOn    int `json:"home_shots_on"`
	AwayShotsOn    int `json:"away_shots_on"`
	HomePossession int `json:"home_possession"`
	AwayPossession int `json:"away_possession"`
	HomeFouls      int `json:"home_fouls"`
	AwayFouls      int `json:"away_fouls"`
	HomeCorners    int `json:"home_corners"`
	AwayCorners    int `json:"away_corners"`
}

// Odds holds decimal betting odds. Zero values mean the market is unavailable.
type Odds struct {
	Home      decimal.Decimal `json:"home"`
	Draw      decimal.Decimal `json:"draw"`
	Away      decimal.Decimal `json:"away"`
	Over25    decimal.Decimal `json:"over_2_5"`
	Under25   decimal.Decimal `json:"under_2_5"`
	Bookmaker string          `json:"bookmaker,omitempty"`
}

// HeadToHead is a single past meeting of the two teams
type HeadToHead struct {
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
}

// PredictionRequest is the match context a prediction is built from
type PredictionRequest struct {
	MatchID    string       `json:"match_id,omitempty"`
	HomeTeam   string       `json:"home_team"`
	AwayTeam   string       `json:"away_team"`
	LeagueName string       `json:"league_name"`
	MatchDate  time.Time    `json:"match_date,omitempty"`
	HomeForm   string       `json:"home_form"` // W/D/L letters, most recent first
	AwayForm   string       `json:"away_form"`
	Stats      *MatchStats  `json:"stats,omitempty"`
	Odds       *Odds        `json:"odds,omitempty"`
	HeadToHead []HeadToHead `json:"head_to_head,omitempty"`
}

// RecommendedBet is a single bet suggested by the model
type RecommendedBet struct {
	Type            string          `json:"type"`
	Selection       string          `json:"selection"`
	Odds            decimal.Decimal `json:"odds"`
	Confidence      int             `json:"confidence"`
	StakePercentage int             `json:"stake_percentage"`
}

// PredictionResult is a validated prediction. Confidences are always within [1,100].
type PredictionResult struct {
	ID               string           `json:"id,omitempty"`
	MatchID          string           `json:"match_id,omitempty"`
	HomeTeam         string           `json:"home_team,omitempty"`
	AwayTeam         string           `json:"away_team,omitempty"`
	LeagueName       string           `json:"league_name,omitempty"`
	MatchDate        *time.Time       `json:"match_date,omitempty"`
	Winner           Outcome          `json:"winner"`
	WinnerConfidence int              `json:"winner_confidence"`
	Goals            GoalsLine        `json:"goals"`
	GoalsConfidence  int              `json:"goals_confidence"`
	BothTeamsScore   BTTS             `json:"both_teams_score"`
	BTTSConfidence   int              `json:"btts_confidence"`
	Analysis         string           `json:"analysis"`
	RiskFactors      []string         `json:"risk_factors"`
	KeyInsights      []string         `json:"key_insights"`
	RecommendedBets  []RecommendedBet `json:"recommended_bets"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
	Fallback         bool             `json:"fallback"`
	CreatedAt        time.Time        `json:"created_at"`
}

// CacheEntry is a stored prediction with its lifetime
type CacheEntry struct {
	Key       string           `json:"key"`
	Result    PredictionResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// PredictionQuery is the inbound prediction request
type PredictionQuery struct {
	MatchID    string `json:"matchId,omitempty"`
	HomeTeam   string `json:"homeTeam,omitempty"`
	AwayTeam   string `json:"awayTeam,omitempty"`
	LeagueName string `json:"leagueName,omitempty"`
	MatchDate  string `json:"matchDate,omitempty"`
	HomeForm   string `json:"homeForm,omitempty"`
	AwayForm   string `json:"awayForm,omitempty"`
}

// PredictionResponse is returned to every front-end
type PredictionResponse struct {
	Success bool              `json:"success"`
	Data    *PredictionResult `json:"data"`
	Source  string            `json:"source"`
}
