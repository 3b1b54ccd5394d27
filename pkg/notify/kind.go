package notify

// Kind names one notification stream. Each kind has its own last-sent record.
type Kind string

const (
	KindTrialEarly Kind = "trial_early"
	KindTrialFinal Kind = "trial_final"
	KindRenewal    Kind = "renewal"
)
