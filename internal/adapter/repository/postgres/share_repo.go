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

const selectShare = `
SELECT client_id, share_id, checkpoint_index, total_bps, created_at, updated_at
FROM balance_shares
WHERE slot = $1`

// ShareRepository implements usecase.ShareRepository. Rows are keyed by the
// base slot derived from (client_id, share_id).
type ShareRepository struct {
	db querier
}

// NewShareRepository creates a new ShareRepository.
func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{db: pool}
}

func newShareRepositoryWithQuerier(db querier) *ShareRepository {
	return &ShareRepository{db: db}
}

// Get retrieves a balance share root.
func (r *ShareRepository) Get(ctx context.Context, clientID, shareID string) (*domain.BalanceShare, error) {
	slot := addressing.BaseSlot(clientID, shareID)

	return scanShare(r.db.QueryRow(ctx, selectShare, slot[:]))
}

// GetForUpdate retrieves a balance share root with a FOR UPDATE lock. Every
// mutation of a share ledger takes this lock first, which serializes
// deposits, share changes, and withdrawals per (client, share-id).
func (r *ShareRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, clientID, shareID string) (*domain.BalanceShare, error) {
	slot := addressing.BaseSlot(clientID, shareID)

	return scanShare(txQuerier(tx).QueryRow(ctx, selectShare+` FOR UPDATE`, slot[:]))
}

// Create creates a balance share root within a transaction.
func (r *ShareRepository) Create(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error {
	slot := addressing.BaseSlot(share.ClientID, share.ShareID)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO balance_shares (slot, client_id, share_id, checkpoint_index, total_bps, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		slot[:],
		share.ClientID,
		share.ShareID,
		uint64ToNumeric(share.CheckpointIndex),
		int32(share.TotalBps),
		timeToPgTimestamptz(share.CreatedAt),
		timeToPgTimestamptz(share.UpdatedAt),
	)

	return err
}

// Update updates the live checkpoint index and denormalized total bps.
func (r *ShareRepository) Update(ctx context.Context, tx usecase.Transaction, share *domain.BalanceShare) error {
	slot := addressing.BaseSlot(share.ClientID, share.ShareID)

	_, err := txQuerier(tx).Exec(ctx, `
UPDATE balance_shares
SET checkpoint_index = $2, total_bps = $3, updated_at = $4
WHERE slot = $1`,
		slot[:],
		uint64ToNumeric(share.CheckpointIndex),
		int32(share.TotalBps),
		timeToPgTimestamptz(share.UpdatedAt),
	)

	return err
}

func scanShare(row pgx.Row) (*domain.BalanceShare, error) {
	var (
		share      domain.BalanceShare
		checkpoint pgtype.Numeric
		totalBps   int32
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)

	err := row.Scan(&share.ClientID, &share.ShareID, &checkpoint, &totalBps, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrShareNotFound
		}

		return nil, err
	}

	share.CheckpointIndex = numericToUint64(checkpoint)
	share.TotalBps = uint16(totalBps)
	share.CreatedAt = pgTimestamptzToTime(createdAt)
	share.UpdatedAt = pgTimestamptzToTime(updatedAt)

	return &share, nil
}
