package apifootball

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// envelope is the common API-Football response wrapper
type envelope[T any] struct {
	Results  int             `json:"results"`
	Errors   json.RawMessage `json:"errors"`
	Response []T             `json:"response"`
}

// Fixture is a single match
type Fixture struct {
	Fixture struct {
		ID     int       `json:"id"`
		Date   time.Time `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Season int    `json:"season"`
	} `json:"league"`
	Teams struct {
		Home Team `json:"home"`
		Away Team `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

// Team is a fixture participant
type Team struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Winner *bool  `json:"winner"`
}

// Finished reports whether the fixture has a final score
func (f Fixture) Finished() bool {
	switch f.Fixture.Status.Short {
	case "FT", "AET", "PEN":
		return f.Goals.Home != nil && f.Goals.Away != nil
	}
	return false
}

// Started reports whether the fixture has kicked off
func (f Fixture) Started() bool {
	switch f.Fixture.Status.Short {
	case "", "TBD", "NS", "PST", "CANC", "ABD", "AWD", "WO":
		return false
	}
	return true
}

type oddsResponse struct {
	Bookmakers []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Bets []struct {
			ID     int    `json:"id"`
			Name   string `json:"name"`
			Values []struct {
				Value string `json:"value"`
				Odd   string `json:"odd"`
			} `json:"values"`
		} `json:"bets"`
	} `json:"bookmakers"`
}

type teamStatistics struct {
	Team struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Statistics []struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"statistics"`
}

// statValue reads a statistic that may be a number, a "55%" string or null
func statValue(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	s = strings.TrimSuffix(s, "%")
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(n)
}
