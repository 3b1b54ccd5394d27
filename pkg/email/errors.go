package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email: send failed")
	ErrInvalidConfig     = errors.New("email: invalid config")
	ErrInvalidParams     = errors.New("email: invalid message")
	// ErrRecipientRejected marks a send the provider refused for the address
	// itself; retrying the same message will not help.
	ErrRecipientRejected = errors.New("email: recipient rejected")
)
