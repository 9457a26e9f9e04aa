package card

import (
	"errors"
	"testing"
	"time"
)

func TestRefreshFirstTime(t *testing.T) {
	now := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	next, err := Refresh(RefreshState{}, now)
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if next.Seed != 1 {
		t.Errorf("seed = %d, want 1", next.Seed)
	}
	if next.LastRefresh == nil || !next.LastRefresh.Equal(now) {
		t.Errorf("LastRefresh = %v, want %v", next.LastRefresh, now)
	}
}

func TestRefreshDuringCooldown(t *testing.T) {
	now := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	last := now.Add(-23*time.Hour - 59*time.Minute)
	state := RefreshState{Seed: 4, LastRefresh: &last}

	next, err := Refresh(state, now)
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("want *CooldownError, got %v", err)
	}
	if cd.Remaining != time.Minute {
		t.Errorf("Remaining = %v, want 1m", cd.Remaining)
	}
	if cd.Hours() != 0 || cd.Minutes() != 1 {
		t.Errorf("decomposition = %dh %dm, want 0h 1m", cd.Hours(), cd.Minutes())
	}
	// Prior state untouched on failure.
	if next.Seed != 4 || !next.LastRefresh.Equal(last) {
		t.Errorf("state mutated on failure: %+v", next)
	}
}

func TestRefreshAtCooldownBoundary(t *testing.T) {
	now := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	last := now.Add(-RefreshCooldown)
	next, err := Refresh(RefreshState{Seed: 1, LastRefresh: &last}, now)
	if err != nil {
		t.Fatalf("refresh at exactly 24h failed: %v", err)
	}
	if next.Seed != 2 {
		t.Errorf("seed = %d, want 2", next.Seed)
	}
}

func TestCooldownDecomposition(t *testing.T) {
	now := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	last := now.Add(-10*time.Hour - 30*time.Minute)
	_, err := Refresh(RefreshState{LastRefresh: &last}, now)
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("want *CooldownError, got %v", err)
	}
	if cd.Hours() != 13 || cd.Minutes() != 30 {
		t.Errorf("decomposition = %dh %dm, want 13h 30m", cd.Hours(), cd.Minutes())
	}
}

func TestCanRefresh(t *testing.T) {
	now := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	if !CanRefresh(RefreshState{}, now) {
		t.Error("never-refreshed card should be refreshable")
	}
	recent := now.Add(-time.Hour)
	if CanRefresh(RefreshState{LastRefresh: &recent}, now) {
		t.Error("1h-old refresh should still be cooling down")
	}
	old := now.Add(-25 * time.Hour)
	if !CanRefresh(RefreshState{LastRefresh: &old}, now) {
		t.Error("25h-old refresh should be refreshable")
	}
}
