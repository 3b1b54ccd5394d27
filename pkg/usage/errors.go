package usage

import "errors"

var (
	ErrNoCounterRegistered = errors.New("usage: no counter registered for resource")
	ErrCountFailed         = errors.New("usage: failed to count resource")
)
