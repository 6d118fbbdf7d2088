package main

import (
	"sync"
	"time"
)

// dailyLimiter caps prediction requests per chat per UTC day
type dailyLimiter struct {
	limit int
	now   func() time.Time

	mu    sync.Mutex
	usage map[int64]dayUsage
}

type dayUsage struct {
	day   string
	count int
}

func newDailyLimiter(limit int, now func() time.Time) *dailyLimiter {
	if limit <= 0 {
		limit = 5
	}
	return &dailyLimiter{limit: limit, now: now, usage: make(map[int64]dayUsage)}
}

// Allow records a request and returns how many remain today
func (l *dailyLimiter) Allow(chatID int64) (int, bool) {
	day := l.now().UTC().Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.usage[chatID]
	if u.day != day {
		u = dayUsage{day: day}
	}
	if u.count >= l.limit {
		return 0, false
	}
	u.count++
	l.usage[chatID] = u
	return l.limit - u.count, true
}
