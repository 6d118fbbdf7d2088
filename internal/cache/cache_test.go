package cache

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Alias1177/MatchPredictor/models"
)

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewMemoryStore(clock)
	ctx := context.Background()

	result := &models.PredictionResult{Winner: models.OutcomeHome, WinnerConfidence: 70, Analysis: "x"}
	if err := s.Put(ctx, "match:1", result, time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	tests := []struct {
		name    string
		advance time.Duration
		wantHit bool
	}{
		{name: "fresh", advance: 0, wantHit: true},
		{name: "just before expiry", advance: time.Hour - time.Nanosecond, wantHit: true},
		{name: "at expiry", advance: time.Hour, wantHit: false},
		{name: "after expiry", advance: 2 * time.Hour, wantHit: false},
	}

	base := now
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base.Add(tt.advance)
			got, hit, err := s.Get(ctx, "match:1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if hit != tt.wantHit {
				t.Errorf("Get() hit = %v, want %v", hit, tt.wantHit)
			}
			if hit && got.Winner != models.OutcomeHome {
				t.Errorf("Get() winner = %v, want %v", got.Winner, models.OutcomeHome)
			}
		})
	}
}

func TestMemoryStoreGetIdempotent(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	if _, hit, _ := s.Get(ctx, "missing"); hit {
		t.Fatal("Get() on empty store returned a hit")
	}

	s.Put(ctx, "k", &models.PredictionResult{Winner: models.OutcomeDraw, RiskFactors: []string{"a"}}, time.Hour)
	first, _, _ := s.Get(ctx, "k")
	second, _, _ := s.Get(ctx, "k")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Get() = %+v then %+v, want identical results", first, second)
	}
}

func TestMemoryStorePutSupersedes(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	s.Put(ctx, "k", &models.PredictionResult{Winner: models.OutcomeDraw}, time.Hour)
	s.Put(ctx, "k", &models.PredictionResult{Winner: models.OutcomeAway}, time.Hour)

	got, _, _ := s.Get(ctx, "k")
	if got.Winner != models.OutcomeAway {
		t.Errorf("Get() winner = %v, want %v", got.Winner, models.OutcomeAway)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStoreIsolatesSlices(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	stored := &models.PredictionResult{
		Winner:          models.OutcomeHome,
		RiskFactors:     []string{"injuries"},
		KeyInsights:     []string{"home form"},
		RecommendedBets: []models.RecommendedBet{{Type: "1X2", Selection: "1", Confidence: 60}},
	}
	s.Put(ctx, "k", stored, time.Hour)
	stored.RiskFactors[0] = "changed after put"

	got, _, _ := s.Get(ctx, "k")
	got.KeyInsights[0] = "changed after get"
	got.RecommendedBets[0].Selection = "2"

	again, _, _ := s.Get(ctx, "k")
	if again.RiskFactors[0] != "injuries" {
		t.Errorf("RiskFactors[0] = %q, want %q", again.RiskFactors[0], "injuries")
	}
	if again.KeyInsights[0] != "home form" {
		t.Errorf("KeyInsights[0] = %q, want %q", again.KeyInsights[0], "home form")
	}
	if again.RecommendedBets[0].Selection != "1" {
		t.Errorf("RecommendedBets[0].Selection = %q, want %q", again.RecommendedBets[0].Selection, "1")
	}
}

func TestMatchKey(t *testing.T) {
	tests := []struct {
		name                      string
		matchID, home, away, date string
		want                      string
	}{
		{name: "fixture id", matchID: "1035046", home: "Arsenal", want: "match:1035046"},
		{name: "team names", home: "Arsenal FC", away: "Chelsea", date: "2026-10-24", want: "teams:arsenal:chelsea:2026-10-24"},
		{name: "accents and spacing", home: "  Atlético   Madrid ", away: "Fenerbahçe", date: "2026-10-24T19:00:00Z", want: "teams:atletico madrid:fenerbahce:2026-10-24"},
		{name: "no date", home: "Bournemouth AFC", away: "Everton", want: "teams:bournemouth:everton:any"},
		{name: "bad date", home: "A", away: "B", date: "next week", want: "teams:a:b:any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchKey(tt.matchID, tt.home, tt.away, tt.date); got != tt.want {
				t.Errorf("MatchKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
