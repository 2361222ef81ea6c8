package staleness

import (
	"testing"
	"time"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastRefresh time.Time
		ttl         time.Duration
		want        bool
	}{
		{"never refreshed", time.Time{}, DefaultCatalogTTL, true},
		{"just refreshed", now, DefaultCatalogTTL, false},
		{"within ttl", now.Add(-14 * time.Minute), DefaultCatalogTTL, false},
		{"exactly at ttl", now.Add(-15 * time.Minute), DefaultCatalogTTL, true},
		{"past ttl", now.Add(-time.Hour), DefaultCatalogTTL, true},
		{"zero ttl always stale", now, 0, true},
		{"negative ttl always stale", now, -time.Minute, true},
		{"leaderboard ttl", now.Add(-59 * time.Second), DefaultLeaderboardTTL, false},
		{"leaderboard stale", now.Add(-61 * time.Second), DefaultLeaderboardTTL, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.lastRefresh, now, tt.ttl); got != tt.want {
				t.Errorf("IsStale(%v, now, %v) = %v, want %v", tt.lastRefresh, tt.ttl, got, tt.want)
			}
		})
	}
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, outside [%v, %v]", got, before, after)
	}
}
