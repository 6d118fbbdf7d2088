package prediction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/MatchPredictor/models"
)

const defaultConfidence = 50

// rawPrediction is the response schema. Pointer fields tell absent from zero.
type rawPrediction struct {
	Winner           *string  `json:"winner"`
	WinnerConfidence *float64 `json:"winner_confidence"`
	Goals            *string  `json:"goals"`
	GoalsConfidence  *float64 `json:"goals_confidence"`
	BothTeamsScore   *string  `json:"both_teams_score"`
	BTTSConfidence   *float64 `json:"btts_confidence"`
	Analysis         *string  `json:"analysis"`
	RiskFactors      []string `json:"risk_factors"`
	KeyInsights      []string `json:"key_insights"`
	RecommendedBets  []rawBet `json:"recommended_bets"`
}

type rawBet struct {
	Type            string          `json:"type"`
	Selection       string          `json:"selection"`
	Odds            decimal.Decimal `json:"odds"`
	Confidence      *float64        `json:"confidence"`
	StakePercentage *float64        `json:"stake_percentage"`
}

// Parse extracts the first JSON object from a completion and validates it.
// Every failure wraps models.ErrMalformedResponse.
func Parse(text string) (*models.PredictionResult, error) {
	obj := extractJSON(stripMarkdownCodeBlocks(text))
	if obj == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", models.ErrMalformedResponse)
	}

	var raw rawPrediction
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding prediction: %v", models.ErrMalformedResponse, err)
	}

	if raw.Winner == nil {
		return nil, fmt.Errorf("%w: missing winner", models.ErrMalformedResponse)
	}
	winner, ok := parseOutcome(*raw.Winner)
	if !ok {
		return nil, fmt.Errorf("%w: unknown winner %q", models.ErrMalformedResponse, *raw.Winner)
	}

	if raw.Goals == nil {
		return nil, fmt.Errorf("%w: missing goals", models.ErrMalformedResponse)
	}
	goals, ok := parseGoals(*raw.Goals)
	if !ok {
		return nil, fmt.Errorf("%w: unknown goals %q", models.ErrMalformedResponse, *raw.Goals)
	}

	if raw.Analysis == nil || strings.TrimSpace(*raw.Analysis) == "" {
		return nil, fmt.Errorf("%w: missing analysis", models.ErrMalformedResponse)
	}

	btts := models.BTTSNo
	if raw.BothTeamsScore != nil {
		switch models.BTTS(strings.ToLower(strings.TrimSpace(*raw.BothTeamsScore))) {
		case models.BTTSYes:
			btts = models.BTTSYes
		case models.BTTSNo:
			btts = models.BTTSNo
		default:
			return nil, fmt.Errorf("%w: unknown both_teams_score %q", models.ErrMalformedResponse, *raw.BothTeamsScore)
		}
	}

	bets := make([]models.RecommendedBet, 0, len(raw.RecommendedBets))
	for i, b := range raw.RecommendedBets {
		if strings.TrimSpace(b.Type) == "" || strings.TrimSpace(b.Selection) == "" {
			return nil, fmt.Errorf("%w: recommended bet %d missing type or selection", models.ErrMalformedResponse, i)
		}
		bets = append(bets, models.RecommendedBet{
			Type:            b.Type,
			Selection:       b.Selection,
			Odds:            b.Odds,
			Confidence:      confidence(b.Confidence),
			StakePercentage: clamp(round(b.StakePercentage, 1), 1, 5),
		})
	}

	return &models.PredictionResult{
		Winner:           winner,
		WinnerConfidence: confidence(raw.WinnerConfidence),
		Goals:            goals,
		GoalsConfidence:  confidence(raw.GoalsConfidence),
		BothTeamsScore:   btts,
		BTTSConfidence:   confidence(raw.BTTSConfidence),
		Analysis:         strings.TrimSpace(*raw.Analysis),
		RiskFactors:      nonNil(raw.RiskFactors),
		KeyInsights:      nonNil(raw.KeyInsights),
		RecommendedBets:  bets,
	}, nil
}

func parseOutcome(s string) (models.Outcome, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "HOME":
		return models.OutcomeHome, true
	case "X", "DRAW":
		return models.OutcomeDraw, true
	case "2", "AWAY":
		return models.OutcomeAway, true
	}
	return "", false
}

func parseGoals(s string) (models.GoalsLine, bool) {
	switch models.GoalsLine(strings.ToLower(strings.TrimSpace(s))) {
	case models.GoalsOver:
		return models.GoalsOver, true
	case models.GoalsUnder:
		return models.GoalsUnder, true
	}
	return "", false
}

func confidence(v *float64) int {
	return clamp(round(v, defaultConfidence), 1, 100)
}

func round(v *float64, def int) int {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return int(math.Round(math.Max(math.Min(*v, 1e6), -1e6)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// stripMarkdownCodeBlocks removes ```json fences around a completion
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// extractJSON finds the first complete JSON object in a string.
// Braces inside string literals are ignored.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
