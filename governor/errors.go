package governor

import "errors"

var (
	ErrUnknownProposal       = errors.New("unknown proposal")
	ErrNotActive             = errors.New("proposal is not active")
	ErrNotSucceeded          = errors.New("proposal has not succeeded")
	ErrNotQueued             = errors.New("proposal is not queued")
	ErrNotCancelable         = errors.New("proposal can no longer be canceled")
	ErrAlreadyVoted          = errors.New("vote already cast")
	ErrAlreadyQueued         = errors.New("proposal already queued")
	ErrDuplicateProposal     = errors.New("proposal already exists")
	ErrZeroWeight            = errors.New("no voting power at snapshot")
	ErrInvalidSupport        = errors.New("invalid vote type")
	ErrInvalidProposalLength = errors.New("targets, values and calldatas differ in length")
	ErrEmptyProposal         = errors.New("empty proposal")
	ErrBelowThreshold        = errors.New("proposer votes below proposal threshold")
	ErrInvalidSettings       = errors.New("invalid governor settings")
	ErrAlreadyInitialized    = errors.New("governor already initialized")
)
