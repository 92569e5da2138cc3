package usecase

import (
	"context"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

// ShareRepository defines data access for balance share roots.
type ShareRepository interface {
	Get(ctx context.Context, clientID, shareID string) (*domain.BalanceShare, error)
	GetForUpdate(ctx context.Context, tx Transaction, clientID, shareID string) (*domain.BalanceShare, error)
	Create(ctx context.Context, tx Transaction, share *domain.BalanceShare) error
	Update(ctx context.Context, tx Transaction, share *domain.BalanceShare) error
}

// CheckpointRepository defines data access for checkpoints and their
// per-asset accumulators.
type CheckpointRepository interface {
	Create(ctx context.Context, tx Transaction, checkpoint *domain.BalanceSumCheckpoint) error
	Get(ctx context.Context, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error)
	GetTx(ctx context.Context, tx Transaction, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error)
	UpdateTotalBps(ctx context.Context, tx Transaction, clientID, shareID string, index uint64, totalBps uint16) error
	MarkHasBalances(ctx context.Context, tx Transaction, clientID, shareID string, index uint64) error
	GetBalanceSum(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error)
	GetBalanceSumTx(ctx context.Context, tx Transaction, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error)
	UpsertBalanceSum(ctx context.Context, tx Transaction, sum *domain.BalanceSum) error
}

// PeriodRepository defines data access for account shares, their period
// timelines, and withdrawal checkpoints.
type PeriodRepository interface {
	GetAccount(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error)
	GetAccountTx(ctx context.Context, tx Transaction, clientID, shareID, accountID string) (*domain.AccountShare, error)
	UpsertAccount(ctx context.Context, tx Transaction, account *domain.AccountShare) error

	GetPeriod(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error)
	GetPeriodTx(ctx context.Context, tx Transaction, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error)
	ListOpenPeriods(ctx context.Context, tx Transaction, clientID, shareID string) ([]*domain.AccountSharePeriod, error)
	CreatePeriod(ctx context.Context, tx Transaction, period *domain.AccountSharePeriod) error
	UpdatePeriod(ctx context.Context, tx Transaction, period *domain.AccountSharePeriod) error

	GetWithdrawal(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error)
	GetWithdrawalTx(ctx context.Context, tx Transaction, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error)
	UpsertWithdrawal(ctx context.Context, tx Transaction, withdrawal *domain.WithdrawalCheckpoint) error
}

// EventRepository defines data access for the ledger event journal.
type EventRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.LedgerEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.LedgerEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.LedgerEvent, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier retries an operation that failed with a transient database error,
// such as a deadlock between two transactions locking the same share root.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
