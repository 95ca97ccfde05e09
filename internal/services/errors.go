package services

import "errors"

// User-facing recoverable conditions. Reported verbatim to the requester,
// never retried by the system and never alerted on.
var (
	ErrQuotaExceeded     = errors.New("device limit reached")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrUserNotFound      = errors.New("user not found")
	ErrKeyNotFound       = errors.New("key not found")
)
