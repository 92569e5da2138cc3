package domain

import (
	"math"
	"time"
)

// OpenEndCheckpoint is the sentinel end index of a period that is still
// accruing. Period end indexes are exclusive.
const OpenEndCheckpoint uint64 = math.MaxUint64

// AccountShare is one account's record under a BalanceShare. MaxPeriodIndex
// is the index of the account's latest period; the period timeline has
// MaxPeriodIndex+1 entries.
type AccountShare struct {
	ClientID       string
	ShareID        string
	AccountID      string
	MaxPeriodIndex uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountSharePeriod is one contiguous interval of checkpoints during which
// an account held a fixed bps allocation. For a given account, periods are
// contiguous and non-overlapping: period[i].EndCheckpoint equals
// period[i+1].StartCheckpoint, and only the last period is open.
type AccountSharePeriod struct {
	ClientID        string
	ShareID         string
	AccountID       string
	PeriodIndex     uint64
	Bps             uint16
	StartCheckpoint uint64 // inclusive
	EndCheckpoint   uint64 // exclusive; OpenEndCheckpoint while accruing
	InitializedAt   time.Time
	RemovableAt     time.Time
	LastWithdrawnAt time.Time
}

// IsOpen reports whether the period is still accruing.
func (p *AccountSharePeriod) IsOpen() bool {
	return p.EndCheckpoint == OpenEndCheckpoint
}

// Covers reports whether checkpoint index is inside the period.
func (p *AccountSharePeriod) Covers(index uint64) bool {
	return index >= p.StartCheckpoint && index < p.EndCheckpoint
}

// SettleableThrough returns the last checkpoint index the period can settle
// against, given the ledger's current checkpoint index. The second return is
// false when the period covers no checkpoints at all: a period closed at the
// index it started at (re-weighted again before anything accumulated) has
// nothing to settle.
func (p *AccountSharePeriod) SettleableThrough(current uint64) (uint64, bool) {
	if p.IsOpen() {
		return current, true
	}

	if p.EndCheckpoint <= p.StartCheckpoint {
		return 0, false
	}

	if p.EndCheckpoint > current {
		return current, true
	}

	return p.EndCheckpoint - 1, true
}

// Locked reports whether reducing or removing the allocation is still
// refused at the given time.
func (p *AccountSharePeriod) Locked(now time.Time) bool {
	return now.Before(p.RemovableAt)
}

// WithdrawalCheckpoint marks how far settlement of one asset has progressed
// for one period. CheckpointIndex never decreases across withdrawals.
// PreviousBalance is the accumulator value observed at CheckpointIndex the
// last time the account withdrew, so a still-accumulating checkpoint can be
// settled incrementally.
type WithdrawalCheckpoint struct {
	ClientID        string
	ShareID         string
	AccountID       string
	PeriodIndex     uint64
	AssetID         string
	CheckpointIndex uint64
	PreviousBalance uint64
	UpdatedAt       time.Time
}

// Advance moves the marker forward. Moving it backwards is a caller logic
// error and is refused.
func (w *WithdrawalCheckpoint) Advance(index, balance uint64, now time.Time) error {
	if index < w.CheckpointIndex {
		return ErrWithdrawalRegression
	}

	w.CheckpointIndex = index
	w.PreviousBalance = balance
	w.UpdatedAt = now

	return nil
}
