package tenant

import "errors"

var (
	ErrTenantNotFound    = errors.New("tenant: not found")
	ErrInvalidIdentifier = errors.New("tenant: identifier is not a uuid")
)
