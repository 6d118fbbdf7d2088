package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

func TestParseTeams(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantHome string
		wantAway string
		wantOK   bool
	}{
		{name: "dash", args: "Galatasaray - Fenerbahçe", wantHome: "Galatasaray", wantAway: "Fenerbahçe", wantOK: true},
		{name: "vs", args: "Real Madrid vs Barcelona", wantHome: "Real Madrid", wantAway: "Barcelona", wantOK: true},
		{name: "tight dash", args: "Arsenal-Chelsea", wantHome: "Arsenal", wantAway: "Chelsea", wantOK: true},
		{name: "missing away", args: "Arsenal - ", wantHome: "Arsenal", wantAway: "", wantOK: false},
		{name: "no separator", args: "Arsenal", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home, away, ok := parseTeams(tt.args)
			if home != tt.wantHome || away != tt.wantAway || ok != tt.wantOK {
				t.Errorf("parseTeams(%q) = %q, %q, %v, want %q, %q, %v", tt.args, home, away, ok, tt.wantHome, tt.wantAway, tt.wantOK)
			}
		})
	}
}

func TestFormatPrediction(t *testing.T) {
	resp := &models.PredictionResponse{
		Success: true,
		Source:  models.SourceLLM,
		Data: &models.PredictionResult{
			HomeTeam:         "Brighton & Hove Albion",
			AwayTeam:         "Chelsea",
			Winner:           models.OutcomeHome,
			WinnerConfidence: 64,
			Goals:            models.GoalsOver,
			GoalsConfidence:  58,
			BothTeamsScore:   models.BTTSYes,
			BTTSConfidence:   61,
			Analysis:         "Home side <strong> at the Amex.",
			RecommendedBets: []models.RecommendedBet{
				{Type: "1X2", Selection: "1", Odds: decimal.RequireFromString("2.1"), Confidence: 60, StakePercentage: 2},
			},
			Model: "deepseek/deepseek-chat",
		},
	}

	got := formatPrediction(resp, 3)

	for _, want := range []string{
		"Brighton &amp; Hove Albion vs Chelsea",
		"Brighton &amp; Hove Albion win</b> (64%)",
		"Over 2.5",
		"&lt;strong&gt;",
		"1X2: 1 @ 2.10 (60%, stake 2%)",
		"3 predictions left today",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatPrediction() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatProviders(t *testing.T) {
	got := formatProviders([]provider.Status{
		{Name: "OpenRouter_1", Model: "m", State: provider.StateActive},
		{Name: "OpenRouter_2", Model: "m", State: provider.StateCircuitOpen, Failures: 0},
	})
	if !strings.Contains(got, "🟢 OpenRouter_1") || !strings.Contains(got, "🔴 OpenRouter_2") {
		t.Errorf("formatProviders() = %s", got)
	}
	if got := formatProviders(nil); got != "No AI providers configured." {
		t.Errorf("formatProviders(nil) = %s", got)
	}
}

func TestDailyLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	l := newDailyLimiter(2, func() time.Time { return now })

	if rem, ok := l.Allow(1); !ok || rem != 1 {
		t.Errorf("first Allow() = %d, %v, want 1, true", rem, ok)
	}
	if rem, ok := l.Allow(1); !ok || rem != 0 {
		t.Errorf("second Allow() = %d, %v, want 0, true", rem, ok)
	}
	if _, ok := l.Allow(1); ok {
		t.Error("third Allow() = true, want false")
	}
	if _, ok := l.Allow(2); !ok {
		t.Error("other chat should have its own quota")
	}

	now = now.Add(2 * time.Hour)
	if rem, ok := l.Allow(1); !ok || rem != 1 {
		t.Errorf("next day Allow() = %d, %v, want 1, true", rem, ok)
	}
}
