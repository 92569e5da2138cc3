package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking per-share rows
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// shareStatusCacheTTL bounds staleness of the cached share status on the
	// read path; mutations invalidate the key eagerly.
	shareStatusCacheTTL = 30 * time.Second
)
