package schedule

import "errors"

var (
	ErrInvalidSchedule      = errors.New("schedule: invalid schedule")
	ErrJobAlreadyRegistered = errors.New("schedule: job already registered")
	ErrNoJobs               = errors.New("schedule: no jobs registered")
	ErrUnknownJob           = errors.New("schedule: unknown job")
	ErrJobLocked            = errors.New("schedule: job is running on another instance")
)
