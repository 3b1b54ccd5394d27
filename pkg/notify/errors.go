package notify

import "errors"

var (
	ErrNotificationSendFailed = errors.New("notification send failed")
	ErrNoRecipient            = errors.New("tenant has no notification recipient")
	ErrLedgerUnavailable      = errors.New("notification ledger unavailable")
	ErrMarkRenewalFailed      = errors.New("renewal reminder sent but not recorded")
)
