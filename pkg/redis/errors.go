package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection url")
	ErrRedisNotReady                = errors.New("redis: not ready before retry budget ran out")
	// ErrEmptyConnectionURL also signals that Redis is disabled.
	ErrEmptyConnectionURL = errors.New("redis: connection url is empty")
	ErrHealthcheckFailed  = errors.New("redis: healthcheck failed")
	ErrLockNotHeld        = errors.New("redis: lock not held")
)
