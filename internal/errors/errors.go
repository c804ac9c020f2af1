package errors

import (
	"errors"
)

// Ledger error kinds
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
)

// ErrEnforcementFailed is local to the reconciler and never a ledger failure.
var ErrEnforcementFailed = errors.New("enforcement failed")
