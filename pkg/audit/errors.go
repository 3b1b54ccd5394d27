package audit

import "errors"

var (
	ErrStorageNotAvailable = errors.New("audit: storage unavailable")
	ErrEventValidation     = errors.New("audit: invalid event")
)
