package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Alias1177/MatchPredictor/models"
)

// MaxHeadToHead is the number of most recent meetings included in a prompt
const MaxHeadToHead = 3

// SystemInstruction is sent as the system message with every prompt
const SystemInstruction = "You are a professional football analyst and betting expert. You respond with JSON only."

const responseFormat = `{
  "winner": "1" | "X" | "2",
  "winner_confidence": number from 1 to 100,
  "goals": "over_2.5" | "under_2.5",
  "goals_confidence": number from 1 to 100,
  "both_teams_score": "yes" | "no",
  "btts_confidence": number from 1 to 100,
  "analysis": "detailed analysis, at most 200 words",
  "risk_factors": ["risk factor 1", "risk factor 2"],
  "key_insights": ["insight 1", "insight 2"],
  "recommended_bets": [
    {
      "type": "winner" | "goals" | "btts",
      "selection": "selection description",
      "odds": decimal odds,
      "confidence": number from 1 to 100,
      "stake_percentage": number from 1 to 5
    }
  ]
}`

// Build creates the user prompt for a match. The output depends only on req.
func Build(req models.PredictionRequest) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following football match as a professional analyst and predict the outcome.\n\n")
	sb.WriteString(fmt.Sprintf("Home team: %s\n", req.HomeTeam))
	sb.WriteString(fmt.Sprintf("Away team: %s\n", req.AwayTeam))
	if req.LeagueName != "" {
		sb.WriteString(fmt.Sprintf("League: %s\n", req.LeagueName))
	}
	if !req.MatchDate.IsZero() {
		sb.WriteString(fmt.Sprintf("Date: %s\n", req.MatchDate.UTC().Format("2006-01-02")))
	}

	sb.WriteString("\nTeam form (last 5 matches, most recent first):\n")
	sb.WriteString(fmt.Sprintf("- %s: %s\n", req.HomeTeam, FormatForm(req.HomeForm)))
	sb.WriteString(fmt.Sprintf("- %s: %s\n", req.AwayTeam, FormatForm(req.AwayForm)))

	if s := req.Stats; s != nil {
		sb.WriteString("\nMatch statistics (home / away):\n")
		sb.WriteString(fmt.Sprintf("- Shots: %d / %d (on target: %d / %d)\n", s.HomeShotsTotal, s.AwayShotsTotal, s.HomeShotsOn, s.AwayShotsOn))
		sb.WriteString(fmt.Sprintf("- Possession: %d%% / %d%%\n", s.HomePossession, s.AwayPossession))
		sb.WriteString(fmt.Sprintf("- Fouls: %d / %d\n", s.HomeFouls, s.AwayFouls))
		sb.WriteString(fmt.Sprintf("- Corners: %d / %d\n", s.HomeCorners, s.AwayCorners))
	}

	if o := req.Odds; o != nil {
		sb.WriteString("\nBetting odds:\n")
		if !o.Home.IsZero() || !o.Draw.IsZero() || !o.Away.IsZero() {
			sb.WriteString(fmt.Sprintf("- Home win (1): %s\n", o.Home.String()))
			sb.WriteString(fmt.Sprintf("- Draw (X): %s\n", o.Draw.String()))
			sb.WriteString(fmt.Sprintf("- Away win (2): %s\n", o.Away.String()))
		}
		if !o.Over25.IsZero() {
			sb.WriteString(fmt.Sprintf("- Over 2.5 goals: %s\n", o.Over25.String()))
		}
		if !o.Under25.IsZero() {
			sb.WriteString(fmt.Sprintf("- Under 2.5 goals: %s\n", o.Under25.String()))
		}
	}

	if h2h := recentHeadToHead(req.HeadToHead); len(h2h) > 0 {
		sb.WriteString("\nRecent head-to-head:\n")
		for _, m := range h2h {
			sb.WriteString(fmt.Sprintf("- %s: %s %d-%d %s\n", m.Date.UTC().Format("2006-01-02"), m.HomeTeam, m.HomeGoals, m.AwayGoals, m.AwayTeam))
		}
	}

	sb.WriteString("\nTask: analyze the data above and return a prediction in exactly this JSON format:\n\n")
	sb.WriteString(responseFormat)
	sb.WriteString("\n\nIMPORTANT: respond with the JSON object only, no other text.")

	return sb.String()
}

// FormatForm converts a W/D/L form string into words
func FormatForm(form string) string {
	form = strings.TrimSpace(form)
	if form == "" {
		return "no data"
	}

	words := make([]string, 0, len(form))
	for _, r := range strings.ToUpper(form) {
		switch r {
		case 'W':
			words = append(words, "Win")
		case 'D':
			words = append(words, "Draw")
		case 'L':
			words = append(words, "Loss")
		default:
			words = append(words, "Unknown")
		}
	}
	return strings.Join(words, " → ")
}

// recentHeadToHead returns at most MaxHeadToHead meetings, newest first
func recentHeadToHead(matches []models.HeadToHead) []models.HeadToHead {
	if len(matches) == 0 {
		return nil
	}

	sorted := make([]models.HeadToHead, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	if len(sorted) > MaxHeadToHead {
		sorted = sorted[:MaxHeadToHead]
	}
	return sorted
}
