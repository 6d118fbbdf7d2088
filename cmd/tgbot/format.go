package main

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

func helpText(limit int) string {
	var sb strings.Builder
	sb.WriteString("<b>⚽ Match Predictor</b>\n\n")
	sb.WriteString("/predict Home - Away  predict a match by team names\n")
	sb.WriteString("/match 1035  predict an API-Football fixture\n")
	sb.WriteString("/providers  show AI provider status\n\n")
	sb.WriteString(fmt.Sprintf("You can request up to %d predictions per day.", limit))
	return sb.String()
}

// parseTeams splits "Home - Away" (also "Home vs Away")
func parseTeams(args string) (home, away string, ok bool) {
	for _, sep := range []string{" - ", " vs ", " VS ", " Vs ", " v ", "-"} {
		if i := strings.Index(args, sep); i >= 0 {
			home = strings.TrimSpace(args[:i])
			away = strings.TrimSpace(args[i+len(sep):])
			return home, away, home != "" && away != ""
		}
	}
	return "", "", false
}

func isFixtureID(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

func formatPrediction(resp *models.PredictionResponse, remaining int) string {
	p := resp.Data
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>%s vs %s</b>\n", html.EscapeString(p.HomeTeam), html.EscapeString(p.AwayTeam)))
	if p.LeagueName != "" {
		sb.WriteString(html.EscapeString(p.LeagueName) + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("🏆 Result: <b>%s</b> (%d%%)\n", outcomeLabel(p), p.WinnerConfidence))
	goals := "Under 2.5"
	if p.Goals == models.GoalsOver {
		goals = "Over 2.5"
	}
	sb.WriteString(fmt.Sprintf("⚽ Goals: <b>%s</b> (%d%%)\n", goals, p.GoalsConfidence))
	btts := "No"
	if p.BothTeamsScore == models.BTTSYes {
		btts = "Yes"
	}
	sb.WriteString(fmt.Sprintf("🎯 Both teams score: <b>%s</b> (%d%%)\n\n", btts, p.BTTSConfidence))

	sb.WriteString(html.EscapeString(p.Analysis) + "\n")

	if len(p.KeyInsights) > 0 {
		sb.WriteString("\n<b>Key insights</b>\n")
		for _, s := range p.KeyInsights {
			sb.WriteString("• " + html.EscapeString(s) + "\n")
		}
	}
	if len(p.RiskFactors) > 0 {
		sb.WriteString("\n<b>Risks</b>\n")
		for _, s := range p.RiskFactors {
			sb.WriteString("⚠️ " + html.EscapeString(s) + "\n")
		}
	}
	if len(p.RecommendedBets) > 0 {
		sb.WriteString("\n<b>Recommended bets</b>\n")
		for _, bet := range p.RecommendedBets {
			line := fmt.Sprintf("• %s: %s", html.EscapeString(bet.Type), html.EscapeString(bet.Selection))
			if bet.Odds.IsPositive() {
				line += " @ " + bet.Odds.StringFixed(2)
			}
			sb.WriteString(fmt.Sprintf("%s (%d%%, stake %d%%)\n", line, bet.Confidence, bet.StakePercentage))
		}
	}

	sb.WriteString("\n")
	switch {
	case p.Fallback:
		sb.WriteString("<i>Based on recent form only</i>")
	case resp.Source == models.SourceCache:
		sb.WriteString("<i>Cached prediction</i>")
	default:
		sb.WriteString(fmt.Sprintf("<i>Model: %s</i>", html.EscapeString(p.Model)))
	}
	sb.WriteString(fmt.Sprintf("\n<i>%d predictions left today</i>", remaining))
	return sb.String()
}

func outcomeLabel(p *models.PredictionResult) string {
	switch p.Winner {
	case models.OutcomeHome:
		return html.EscapeString(p.HomeTeam) + " win"
	case models.OutcomeAway:
		return html.EscapeString(p.AwayTeam) + " win"
	default:
		return "Draw"
	}
}

func formatProviders(statuses []provider.Status) string {
	if len(statuses) == 0 {
		return "No AI providers configured."
	}
	var sb strings.Builder
	sb.WriteString("<b>AI providers</b>\n")
	for _, st := range statuses {
		icon := "🟢"
		if st.State == provider.StateCircuitOpen {
			icon = "🔴"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s) failures: %d\n", icon, html.EscapeString(st.Name), html.EscapeString(st.Model), st.Failures))
	}
	return sb.String()
}
