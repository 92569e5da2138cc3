// Package addressing maps the ledger's hierarchical logical keys onto a
// flat 32-byte slot space by hash chaining. Every record table is keyed by
// these slots, so a descendant's location is derived directly from its
// parent's slot instead of re-walking the whole key path.
//
// All derivations are pure. The single dynamic step of the scheme, finding
// the current checkpoint, is a read of the live checkpoint index followed by
// a CheckpointSlot call; that read belongs to the caller's transaction, not
// to this package.
package addressing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Slot is a unique location in the flat key space.
type Slot [32]byte

// String returns the slot in lowercase hex, the form stored in the database.
func (s Slot) String() string {
	return hex.EncodeToString(s[:])
}

// Structural offsets. Each level of the logical hierarchy hashes with its
// own tag so sibling namespaces can never collide.
const (
	tagBase       = "bsp/base"
	tagCheckpoint = "bsp/checkpoint"
	tagBalanceSum = "bsp/balance-sum"
	tagAccount    = "bsp/account"
	tagPeriod     = "bsp/period"
	tagWithdrawal = "bsp/withdrawal"
)

// BaseSlot derives the root slot of a (client, share-id) pair: one hash over
// the client identifier chained into one hash over the share identifier.
func BaseSlot(clientID, shareID string) Slot {
	client := leaf(tagBase, []byte(clientID))
	return chain(tagBase, client, []byte(shareID))
}

// CheckpointSlot derives the slot of checkpoint index under a base slot.
func CheckpointSlot(base Slot, index uint64) Slot {
	return chain(tagCheckpoint, base, uint64Key(index))
}

// BalanceSumSlot derives the slot of one asset's accumulator under a
// checkpoint slot.
func BalanceSumSlot(checkpoint Slot, assetID string) Slot {
	return chain(tagBalanceSum, checkpoint, []byte(assetID))
}

// AccountSlot derives the slot of an account's share record under a base
// slot.
func AccountSlot(base Slot, accountID string) Slot {
	return chain(tagAccount, base, []byte(accountID))
}

// PeriodSlot derives the slot of one period under an account slot.
func PeriodSlot(account Slot, periodIndex uint64) Slot {
	return chain(tagPeriod, account, uint64Key(periodIndex))
}

// WithdrawalSlot derives the slot of one asset's withdrawal checkpoint under
// a period slot.
func WithdrawalSlot(period Slot, assetID string) Slot {
	return chain(tagWithdrawal, period, []byte(assetID))
}

func leaf(tag string, key []byte) Slot {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write(key)

	var s Slot
	h.Sum(s[:0])

	return s
}

func chain(tag string, parent Slot, key []byte) Slot {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write(parent[:])
	h.Write(key)

	var s Slot
	h.Sum(s[:0])

	return s
}

func uint64Key(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)

	return b[:]
}
