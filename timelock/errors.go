package timelock

import "errors"

var (
	ErrAlreadyScheduled   = errors.New("operation already scheduled")
	ErrAlreadyExecuted    = errors.New("operation already executed")
	ErrNotReady           = errors.New("operation is not ready")
	ErrPredecessorNotDone = errors.New("predecessor operation is not done")
	ErrNotPending         = errors.New("operation is not pending")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrInsufficientDelay  = errors.New("delay is below the minimum")
	ErrInvalidDelay       = errors.New("delay must not be negative")
	ErrBatchCallFailed    = errors.New("batch call failed")
	ErrEmptyBatch         = errors.New("operation has no calls")
	ErrUnknownRole        = errors.New("unknown role")
	ErrAlreadyInitialized = errors.New("timelock already initialized")
	ErrRoleInvariant      = errors.New("role table invariant violated")
)
