package prediction

import (
	"strings"

	"github.com/Alias1177/MatchPredictor/models"
)

const (
	fallbackWinConfidence  = 55
	fallbackDrawConfidence = 40
)

// Fallback predicts from recent form alone. It is used when no AI provider
// produced a valid result and never touches the network.
func Fallback(req models.PredictionRequest) models.PredictionResult {
	homeWins := countWins(req.HomeForm)
	awayWins := countWins(req.AwayForm)

	winner := models.OutcomeDraw
	conf := fallbackDrawConfidence
	switch {
	case homeWins > awayWins+1:
		winner = models.OutcomeHome
		conf = fallbackWinConfidence
	case awayWins > homeWins+1:
		winner = models.OutcomeAway
		conf = fallbackWinConfidence
	}

	return models.PredictionResult{
		MatchID:          req.MatchID,
		HomeTeam:         req.HomeTeam,
		AwayTeam:         req.AwayTeam,
		LeagueName:       req.LeagueName,
		Winner:           winner,
		WinnerConfidence: conf,
		Goals:            models.GoalsOver,
		GoalsConfidence:  45,
		BothTeamsScore:   models.BTTSYes,
		BTTSConfidence:   50,
		Analysis:         "AI analysis is temporarily unavailable. This prediction is based on recent form only.",
		RiskFactors:      []string{"AI analysis unavailable", "Limited data"},
		KeyInsights:      []string{},
		RecommendedBets:  []models.RecommendedBet{},
		Fallback:         true,
	}
}

func countWins(form string) int {
	return strings.Count(strings.ToUpper(form), "W")
}
