package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/addressing"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

const selectCheckpoint = `
SELECT client_id, share_id, checkpoint_index, total_bps, has_balances, created_at
FROM balance_sum_checkpoints
WHERE slot = $1`

const selectBalanceSum = `
SELECT client_id, share_id, checkpoint_index, asset_id, balance, remainder, updated_at
FROM balance_sums
WHERE slot = $1`

// CheckpointRepository implements usecase.CheckpointRepository. Checkpoint
// rows are keyed by the checkpoint slot chained off the share's base slot;
// per-asset accumulators hang one more hash below that.
type CheckpointRepository struct {
	db querier
}

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{db: pool}
}

func newCheckpointRepositoryWithQuerier(db querier) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

func checkpointSlot(clientID, shareID string, index uint64) addressing.Slot {
	return addressing.CheckpointSlot(addressing.BaseSlot(clientID, shareID), index)
}

// Create creates a checkpoint within a transaction.
func (r *CheckpointRepository) Create(ctx context.Context, tx usecase.Transaction, checkpoint *domain.BalanceSumCheckpoint) error {
	slot := checkpointSlot(checkpoint.ClientID, checkpoint.ShareID, checkpoint.Index)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO balance_sum_checkpoints (slot, client_id, share_id, checkpoint_index, total_bps, has_balances, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		slot[:],
		checkpoint.ClientID,
		checkpoint.ShareID,
		uint64ToNumeric(checkpoint.Index),
		int32(checkpoint.TotalBps),
		checkpoint.HasBalances,
		timeToPgTimestamptz(checkpoint.CreatedAt),
	)

	return err
}

// Get retrieves a checkpoint.
func (r *CheckpointRepository) Get(ctx context.Context, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error) {
	slot := checkpointSlot(clientID, shareID, index)

	return scanCheckpoint(r.db.QueryRow(ctx, selectCheckpoint, slot[:]))
}

// GetTx retrieves a checkpoint within a transaction.
func (r *CheckpointRepository) GetTx(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64) (*domain.BalanceSumCheckpoint, error) {
	slot := checkpointSlot(clientID, shareID, index)

	return scanCheckpoint(txQuerier(tx).QueryRow(ctx, selectCheckpoint, slot[:]))
}

// UpdateTotalBps rewrites a checkpoint's total bps in place. Only legal
// while the checkpoint has no balances; the caller checks that under the
// share root lock.
func (r *CheckpointRepository) UpdateTotalBps(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64, totalBps uint16) error {
	slot := checkpointSlot(clientID, shareID, index)

	_, err := txQuerier(tx).Exec(ctx, `
UPDATE balance_sum_checkpoints SET total_bps = $2 WHERE slot = $1`,
		slot[:], int32(totalBps),
	)

	return err
}

// MarkHasBalances marks a checkpoint as having recorded accumulation.
func (r *CheckpointRepository) MarkHasBalances(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64) error {
	slot := checkpointSlot(clientID, shareID, index)

	_, err := txQuerier(tx).Exec(ctx, `
UPDATE balance_sum_checkpoints SET has_balances = TRUE WHERE slot = $1`,
		slot[:],
	)

	return err
}

// GetBalanceSum retrieves one asset's accumulator under a checkpoint.
func (r *CheckpointRepository) GetBalanceSum(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error) {
	slot := addressing.BalanceSumSlot(checkpointSlot(clientID, shareID, index), assetID)

	return scanBalanceSum(r.db.QueryRow(ctx, selectBalanceSum, slot[:]))
}

// GetBalanceSumTx retrieves one asset's accumulator within a transaction.
func (r *CheckpointRepository) GetBalanceSumTx(ctx context.Context, tx usecase.Transaction, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error) {
	slot := addressing.BalanceSumSlot(checkpointSlot(clientID, shareID, index), assetID)

	return scanBalanceSum(txQuerier(tx).QueryRow(ctx, selectBalanceSum, slot[:]))
}

// UpsertBalanceSum writes an accumulator back, creating the row on the
// asset's first deposit into the checkpoint.
func (r *CheckpointRepository) UpsertBalanceSum(ctx context.Context, tx usecase.Transaction, sum *domain.BalanceSum) error {
	slot := addressing.BalanceSumSlot(checkpointSlot(sum.ClientID, sum.ShareID, sum.CheckpointIndex), sum.AssetID)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO balance_sums (slot, client_id, share_id, checkpoint_index, asset_id, balance, remainder, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (slot) DO UPDATE
SET balance = EXCLUDED.balance, remainder = EXCLUDED.remainder, updated_at = EXCLUDED.updated_at`,
		slot[:],
		sum.ClientID,
		sum.ShareID,
		uint64ToNumeric(sum.CheckpointIndex),
		sum.AssetID,
		uint64ToNumeric(sum.Balance),
		uint64ToNumeric(sum.Remainder),
		timeToPgTimestamptz(sum.UpdatedAt),
	)

	return err
}

func scanCheckpoint(row pgx.Row) (*domain.BalanceSumCheckpoint, error) {
	var (
		checkpoint domain.BalanceSumCheckpoint
		index      pgtype.Numeric
		totalBps   int32
		createdAt  pgtype.Timestamptz
	)

	err := row.Scan(&checkpoint.ClientID, &checkpoint.ShareID, &index, &totalBps, &checkpoint.HasBalances, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}

		return nil, err
	}

	checkpoint.Index = numericToUint64(index)
	checkpoint.TotalBps = uint16(totalBps)
	checkpoint.CreatedAt = pgTimestamptzToTime(createdAt)

	return &checkpoint, nil
}

func scanBalanceSum(row pgx.Row) (*domain.BalanceSum, error) {
	var (
		sum       domain.BalanceSum
		index     pgtype.Numeric
		balance   pgtype.Numeric
		remainder pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&sum.ClientID, &sum.ShareID, &index, &sum.AssetID, &balance, &remainder, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}

		return nil, err
	}

	sum.CheckpointIndex = numericToUint64(index)
	sum.Balance = numericToUint64(balance)
	sum.Remainder = numericToUint64(remainder)
	sum.UpdatedAt = pgTimestamptzToTime(updatedAt)

	return &sum, nil
}
