package domain

import "time"

// Event types
const (
	EventTypeDepositRecorded    = "deposit.recorded"
	EventTypeCheckpointOpened   = "checkpoint.opened"
	EventTypeShareUpdated       = "share.updated"
	EventTypeShareRemoved       = "share.removed"
	EventTypeWithdrawalRecorded = "withdrawal.recorded"
)

// Aggregate types
const (
	AggregateTypeShare   = "balance_share"
	AggregateTypeAccount = "account_share"
)

// LedgerEvent is a journal row written in the same transaction as the
// mutation it describes and published asynchronously.
type LedgerEvent struct {
	ID            string
	ClientID      string
	ShareID       string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
