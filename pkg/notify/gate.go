package notify

import "time"

// Gate describes which earlier sends of the same kind suppress a new one.
// A previous send at or after Cutoff blocks; the most suppressive rule wins.
type Gate struct {
	// MinInterval is the re-fire guard measured back from now.
	MinInterval time.Duration
	// OncePerWindow blocks any repeat after the current window opened.
	OncePerWindow bool
	// CalendarDay blocks any repeat on the same calendar day as now.
	CalendarDay bool
}

// Cutoff returns the earliest previous-send instant that still blocks a
// send at now. windowOpen may be zero when the gate has no window.
func (g Gate) Cutoff(now, windowOpen time.Time) time.Time {
	cutoff := now.Add(-g.MinInterval)
	if g.OncePerWindow && !windowOpen.IsZero() && windowOpen.Before(cutoff) {
		cutoff = windowOpen
	}
	if g.CalendarDay {
		if day := startOfDay(now); day.Before(cutoff) {
			cutoff = day
		}
	}
	return cutoff
}

// Allows reports whether a send at now is permitted given the last one.
func (g Gate) Allows(last, now, windowOpen time.Time) bool {
	return last.IsZero() || last.Before(g.Cutoff(now, windowOpen))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
