package domain

import (
	"math"
	"time"
)

// Basis point bounds. All proportional allocations are expressed in units of
// 1/10000.
const (
	MaxBps uint16 = 10000
)

// MaxBalanceSum is the bound of a checkpoint's per-asset accumulator.
// A deposit that would push the accumulator past this bound opens a new
// checkpoint instead of wrapping.
const MaxBalanceSum uint64 = math.MaxUint64

// BalanceShare is the root of one client's share ledger, identified by
// (ClientID, ShareID). It tracks the index of the current checkpoint and a
// denormalized copy of that checkpoint's total bps. Created implicitly on
// first use; never deleted.
type BalanceShare struct {
	ClientID        string
	ShareID         string
	CheckpointIndex uint64
	TotalBps        uint16
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BalanceSumCheckpoint is one accounting epoch of a BalanceShare. TotalBps is
// fixed for the lifetime of the checkpoint; opening a new checkpoint is the
// only way to change it. HasBalances is set once any asset records a nonzero
// accumulation in this epoch.
type BalanceSumCheckpoint struct {
	ClientID    string
	ShareID     string
	Index       uint64
	TotalBps    uint16
	HasBalances bool
	CreatedAt   time.Time
}

// BalanceSum is the running deposit accumulator for one asset within one
// checkpoint. Balance never exceeds MaxBalanceSum. Remainder holds the
// sub-unit carry left behind by proportional divisions at settlement time;
// it is always less than the checkpoint's total bps and is never carried
// into the next checkpoint.
type BalanceSum struct {
	ClientID        string
	ShareID         string
	CheckpointIndex uint64
	AssetID         string
	Balance         uint64
	Remainder       uint64
	UpdatedAt       time.Time
}

// Add applies up to amount to the accumulator, stopping at MaxBalanceSum.
// It returns the portion actually applied and whether the bound was hit.
// The caller is expected to open a new checkpoint for the unapplied rest.
func (s *BalanceSum) Add(amount uint64) (applied uint64, overflow bool) {
	room := MaxBalanceSum - s.Balance
	if amount <= room {
		s.Balance += amount
		return amount, false
	}

	s.Balance = MaxBalanceSum

	return room, true
}

// ValidateBps checks a single allocation.
func ValidateBps(bps uint16) error {
	if bps > MaxBps {
		return ErrBpsOutOfRange
	}

	return nil
}
