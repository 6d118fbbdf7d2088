package prediction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/MatchPredictor/internal/cache"
	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

type fakeMatches struct {
	req   *models.PredictionRequest
	err   error
	calls int
}

func (f *fakeMatches) LoadMatch(ctx context.Context, fixtureID int) (*models.PredictionRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.req
	r.MatchID = fmt.Sprint(fixtureID)
	return &r, nil
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Put(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error {
	return errors.New("connection refused")
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestService(mock *mockCompleter, store cache.Store, matches MatchSource) *Service {
	return NewService(newTestCaller(newTestRegistry(), mock), store, ServiceOptions{
		MaxRetries: 3,
		Matches:    matches,
		Now:        func() time.Time { return fixedNow },
	})
}

func TestPredictGeneratesThenCaches(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}
	store := cache.NewMemoryStore(func() time.Time { return fixedNow })
	svc := newTestService(mock, store, nil)
	q := models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea", MatchDate: "2026-10-24"}

	first, err := svc.Predict(context.Background(), q)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if first.Source != models.SourceLLM || !first.Success {
		t.Errorf("first source = %v, want %v", first.Source, models.SourceLLM)
	}
	if first.Data.ID == "" || first.Data.Provider != "OpenRouter_1" {
		t.Errorf("first data = %+v", first.Data)
	}
	if want := fmt.Sprintf("manual_%d", fixedNow.UnixMilli()); first.Data.MatchID != want {
		t.Errorf("MatchID = %v, want %v", first.Data.MatchID, want)
	}
	if first.Data.MatchDate == nil || first.Data.MatchDate.Format("2006-01-02") != "2026-10-24" {
		t.Errorf("MatchDate = %v, want 2026-10-24", first.Data.MatchDate)
	}

	second, err := svc.Predict(context.Background(), q)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if second.Source != models.SourceCache {
		t.Errorf("second source = %v, want %v", second.Source, models.SourceCache)
	}
	if second.Data.ID != first.Data.ID {
		t.Errorf("cached id = %v, want %v", second.Data.ID, first.Data.ID)
	}
	if mock.callCount() != 1 {
		t.Errorf("completer calls = %d, want 1", mock.callCount())
	}
}

func TestPredictFallbackIsNotCached(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{}}
	store := cache.NewMemoryStore(func() time.Time { return fixedNow })
	svc := newTestService(mock, store, nil)
	q := models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeForm: "wwwww", AwayForm: "LLLLL"}

	resp, err := svc.Predict(context.Background(), q)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if resp.Source != models.SourceLLM || !resp.Data.Fallback {
		t.Errorf("response = %+v, want llm fallback", resp)
	}
	if resp.Data.Winner != models.OutcomeHome || resp.Data.WinnerConfidence != 55 {
		t.Errorf("fallback = %v %d, want HOME 55", resp.Data.Winner, resp.Data.WinnerConfidence)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestPredictLoadsFixture(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}
	matches := &fakeMatches{req: &models.PredictionRequest{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeForm: "WWW"}}
	svc := newTestService(mock, cache.NewMemoryStore(nil), matches)

	resp, err := svc.Predict(context.Background(), models.PredictionQuery{MatchID: " 1035 "})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if matches.calls != 1 {
		t.Errorf("LoadMatch calls = %d, want 1", matches.calls)
	}
	if resp.Data.MatchID != "1035" || resp.Data.HomeTeam != "Arsenal" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   models.PredictionQuery
		matches MatchSource
		reg     *provider.Registry
		wantErr error
	}{
		{
			name:    "empty query",
			query:   models.PredictionQuery{HomeTeam: "Arsenal"},
			wantErr: models.ErrInvalidQuery,
		},
		{
			name:    "match id without source or teams",
			query:   models.PredictionQuery{MatchID: "abc"},
			wantErr: models.ErrInvalidQuery,
		},
		{
			name:    "fixture not found",
			query:   models.PredictionQuery{MatchID: "7"},
			matches: &fakeMatches{err: fmt.Errorf("%w: fixture 7", models.ErrNotFound)},
			wantErr: models.ErrNotFound,
		},
		{
			name:    "fixture not found with team names",
			query:   models.PredictionQuery{MatchID: "7", HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
			matches: &fakeMatches{err: fmt.Errorf("%w: fixture 7", models.ErrNotFound)},
			wantErr: models.ErrNotFound,
		},
		{
			name:    "fixture lookup down without team names",
			query:   models.PredictionQuery{MatchID: "7"},
			matches: &fakeMatches{err: fmt.Errorf("GET fixtures: %w", models.ErrTransport)},
			wantErr: models.ErrTransport,
		},
		{
			name:    "no providers",
			query:   models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
			reg:     provider.NewRegistry(nil, provider.Options{}),
			wantErr: models.ErrNoProviderConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := tt.reg
			if reg == nil {
				reg = newTestRegistry()
			}
			caller := newTestCaller(reg, &mockCompleter{responses: map[string][]reply{}})
			svc := NewService(caller, cache.NewMemoryStore(nil), ServiceOptions{Matches: tt.matches})

			_, err := svc.Predict(context.Background(), tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Predict() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPredictFixtureLookupDownUsesQueryTeams(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}
	matches := &fakeMatches{err: fmt.Errorf("GET fixtures: %w", models.ErrTransport)}
	svc := newTestService(mock, cache.NewMemoryStore(nil), matches)

	resp, err := svc.Predict(context.Background(), models.PredictionQuery{
		MatchID:  "1035",
		HomeTeam: "Arsenal",
		AwayTeam: "Chelsea",
		HomeForm: "WWDLW",
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if matches.calls != 1 {
		t.Errorf("LoadMatch calls = %d, want 1", matches.calls)
	}
	if mock.callCount() != 1 {
		t.Errorf("completer calls = %d, want 1", mock.callCount())
	}
	if resp.Source != models.SourceLLM || resp.Data.Fallback {
		t.Errorf("response = %+v, want generated llm result", resp)
	}
	if resp.Data.MatchID != "1035" || resp.Data.HomeTeam != "Arsenal" || resp.Data.AwayTeam != "Chelsea" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestPredictDeadlineFallsBack(t *testing.T) {
	caller := NewCaller(newTestRegistry(), &blockingCompleter{}, CallerOptions{MaxRetries: 3, AttemptTimeout: time.Hour})
	store := cache.NewMemoryStore(nil)
	svc := NewService(caller, store, ServiceOptions{MaxRetries: 3})
	q := models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeForm: "WWWWW", AwayForm: "LLLLL"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := svc.Predict(ctx, q)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if !resp.Data.Fallback || resp.Data.Winner != models.OutcomeHome || resp.Data.WinnerConfidence != 55 {
		t.Errorf("data = %+v, want HOME 55 fallback", resp.Data)
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestPredictCancelledReturnsError(t *testing.T) {
	caller := NewCaller(newTestRegistry(), &blockingCompleter{}, CallerOptions{MaxRetries: 3, AttemptTimeout: time.Hour})
	svc := NewService(caller, cache.NewMemoryStore(nil), ServiceOptions{MaxRetries: 3})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	defer cancel()

	_, err := svc.Predict(ctx, models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Predict() error = %v, want %v", err, context.Canceled)
	}
}

func TestPredictCacheErrorsAreMisses(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}
	svc := newTestService(mock, failingStore{}, nil)

	resp, err := svc.Predict(context.Background(), models.PredictionQuery{HomeTeam: "Arsenal", AwayTeam: "Chelsea"})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if resp.Source != models.SourceLLM || resp.Data.Fallback {
		t.Errorf("response = %+v, want generated llm result", resp)
	}
}

func TestWarmUp(t *testing.T) {
	mock := &mockCompleter{responses: map[string][]reply{"p1": {{text: okReply}}}}
	svc := newTestService(mock, cache.NewMemoryStore(func() time.Time { return fixedNow }), nil)

	queries := []models.PredictionQuery{
		{HomeTeam: "Arsenal", AwayTeam: "Chelsea", MatchDate: "2026-10-24"},
		{HomeTeam: "Arsenal", AwayTeam: "Chelsea", MatchDate: "2026-10-24"},
		{HomeTeam: "Liverpool"},
	}
	got := svc.WarmUp(context.Background(), queries)

	want := WarmSummary{Total: 3, Generated: 1, Cached: 1, Failed: 1}
	if got != want {
		t.Errorf("WarmUp() = %+v, want %+v", got, want)
	}
}

func TestParseMatchDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2026-10-24", want: "2026-10-24"},
		{in: "2026-10-24T19:00:00Z", want: "2026-10-24"},
		{in: "next saturday", want: "0001-01-01"},
		{in: "", want: "0001-01-01"},
	}
	for _, tt := range tests {
		got := parseMatchDate(tt.in).Format("2006-01-02")
		if !strings.EqualFold(got, tt.want) {
			t.Errorf("parseMatchDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
