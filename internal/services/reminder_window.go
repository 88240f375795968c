package services

import "time"

// Window is the inclusive due-date range [Since, Until] examined by one sweep
type Window struct {
	Since time.Time
	Until time.Time
}

// DueWindow returns [now-lookback, now] in UTC
func DueWindow(now time.Time, lookback time.Duration) Window {
	now = now.UTC()
	return Window{Since: now.Add(-lookback), Until: now}
}

// Contains reports whether t falls inside the window, bounds included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && !t.After(w.Until)
}
