package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Alias1177/MatchPredictor/models"
)

// DefaultTTL is how long a generated prediction is served from cache
const DefaultTTL = 7 * 24 * time.Hour

// Store is a prediction cache. A hit requires the current time to be before the entry expiry.
type Store interface {
	Get(ctx context.Context, key string) (*models.PredictionResult, bool, error)
	Put(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error
}

// MatchKey builds the cache key for a match. A fixture id wins over team names.
func MatchKey(matchID, homeTeam, awayTeam, matchDate string) string {
	if id := strings.TrimSpace(matchID); id != "" {
		return "match:" + id
	}

	day := "any"
	if d := strings.TrimSpace(matchDate); d != "" {
		if len(d) >= 10 {
			d = d[:10]
		}
		if _, err := time.Parse("2006-01-02", d); err == nil {
			day = d
		}
	}
	return fmt.Sprintf("teams:%s:%s:%s", NormalizeTeam(homeTeam), NormalizeTeam(awayTeam), day)
}

// NormalizeTeam normalizes a team name for matching.
func NormalizeTeam(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimSuffix(name, " afc")
	name = strings.TrimSuffix(name, " fc")
	name = strings.TrimPrefix(name, "fc ")

	return strings.TrimSpace(name)
}
