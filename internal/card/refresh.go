package card

import (
	"fmt"
	"time"
)

// RefreshCooldown is the minimum interval between card refreshes.
const RefreshCooldown = 24 * time.Hour

// RefreshState is the per-account record driving card derivation. A zero
// value (seed 0, no refresh recorded) is the state of a never-refreshed card.
type RefreshState struct {
	Seed        int
	LastRefresh *time.Time
}

// CooldownError reports a refresh attempted before the cooldown elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("card refresh on cooldown: %dh %dm remaining", e.Hours(), e.Minutes())
}

// Hours returns the whole hours remaining until the next refresh.
func (e *CooldownError) Hours() int {
	return int(e.Remaining / time.Hour)
}

// Minutes returns the minutes remaining beyond the whole hours.
func (e *CooldownError) Minutes() int {
	return int(e.Remaining/time.Minute) % 60
}

// Refresh returns the successor state: seed incremented by one and the
// refresh instant recorded. It fails with *CooldownError while the previous
// refresh is less than RefreshCooldown old. The input state is not modified;
// persisting the returned state must be a single compare-and-set at the
// system of record so concurrent refreshes cannot both succeed.
func Refresh(state RefreshState, now time.Time) (RefreshState, error) {
	if remaining := TimeUntilRefresh(state, now); remaining > 0 {
		return state, &CooldownError{Remaining: remaining}
	}
	return RefreshState{Seed: state.Seed + 1, LastRefresh: &now}, nil
}

// CanRefresh reports whether a refresh at the given instant would succeed.
func CanRefresh(state RefreshState, now time.Time) bool {
	return TimeUntilRefresh(state, now) <= 0
}

// TimeUntilRefresh returns how long until the cooldown expires, or zero when
// a refresh is already allowed.
func TimeUntilRefresh(state RefreshState, now time.Time) time.Duration {
	if state.LastRefresh == nil {
		return 0
	}
	remaining := state.LastRefresh.Add(RefreshCooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
