package domain

import (
	"errors"
	"fmt"
)

var (
	// Share errors
	ErrShareNotFound        = errors.New("balance share not found")
	ErrAccountShareNotFound = errors.New("account share not found")
	ErrBpsOutOfRange        = errors.New("bps exceeds 10000")
	ErrTotalBpsExceeded     = errors.New("total bps across open periods would exceed 10000")

	// Period errors
	ErrPeriodNotFound       = errors.New("account share period not found")
	ErrPeriodLocked         = errors.New("period cannot be reduced before its removable time")
	ErrWithdrawalRegression = errors.New("withdrawal checkpoint cannot move backwards")

	// Deposit errors
	ErrInvalidAmount = errors.New("amount must be positive")

	// Checkpoint errors
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// PeriodIndexError reports a request for a period index beyond the account's
// recorded history. It carries both the requested and the maximum valid
// index so callers can tell a stale reference from a logic error.
type PeriodIndexError struct {
	Requested uint64
	Max       uint64
}

func (e *PeriodIndexError) Error() string {
	return fmt.Sprintf("invalid account share period index: requested %d, max %d", e.Requested, e.Max)
}

// Is makes errors.Is match any PeriodIndexError regardless of operands.
func (e *PeriodIndexError) Is(target error) bool {
	_, ok := target.(*PeriodIndexError)
	return ok
}
