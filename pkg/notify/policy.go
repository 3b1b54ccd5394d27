package notify

import "time"

// Window is a span of remaining trial time in which one kind may be sent.
// It is open while Closes < remaining <= Opens.
type Window struct {
	Kind   Kind
	Opens  time.Duration
	Closes time.Duration
	Gate   Gate
}

func (w Window) contains(remaining time.Duration) bool {
	return remaining > w.Closes && remaining <= w.Opens
}

// TrialPolicy selects warning windows by total trial length.
type TrialPolicy struct {
	// Trials shorter than ShortThreshold use Short, all others Long.
	ShortThreshold time.Duration
	Short          []Window
	Long           []Window
}

// DefaultTrialPolicy sends one final warning for short trials, and an early
// plus a final warning for long ones.
func DefaultTrialPolicy() TrialPolicy {
	return TrialPolicy{
		ShortThreshold: 2 * time.Hour,
		Short: []Window{
			{
				Kind:  KindTrialFinal,
				Opens: 5 * time.Minute,
				Gate:  Gate{MinInterval: 2 * time.Minute, OncePerWindow: true},
			},
		},
		Long: []Window{
			{
				Kind:   KindTrialEarly,
				Opens:  24 * time.Hour,
				Closes: time.Hour,
				Gate:   Gate{MinInterval: 12 * time.Hour},
			},
			{
				Kind:  KindTrialFinal,
				Opens: time.Hour,
				Gate:  Gate{MinInterval: 30 * time.Minute},
			},
		},
	}
}

// Match returns the window containing remaining for a trial of the given
// length. Nothing matches once the trial has ended.
func (p TrialPolicy) Match(length, remaining time.Duration) (Window, bool) {
	if remaining <= 0 {
		return Window{}, false
	}
	windows := p.Long
	if length < p.ShortThreshold {
		windows = p.Short
	}
	for _, w := range windows {
		if w.contains(remaining) {
			return w, true
		}
	}
	return Window{}, false
}

// RenewalPolicy fires on the calendar day the current period ends.
type RenewalPolicy struct {
	Gate Gate
	// Location defines calendar days; UTC when nil.
	Location *time.Location
}

// DefaultRenewalPolicy sends once per UTC calendar day.
func DefaultRenewalPolicy() RenewalPolicy {
	return RenewalPolicy{
		Gate:     Gate{CalendarDay: true},
		Location: time.UTC,
	}
}

func (p RenewalPolicy) in(t time.Time) time.Time {
	if p.Location == nil {
		return t.UTC()
	}
	return t.In(p.Location)
}
