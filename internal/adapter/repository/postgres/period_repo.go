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

const selectAccount = `
SELECT client_id, share_id, account_id, max_period_index, created_at, updated_at
FROM account_shares
WHERE slot = $1`

const selectPeriod = `
SELECT client_id, share_id, account_id, period_index, bps, start_checkpoint, end_checkpoint,
       initialized_at, removable_at, last_withdrawn_at
FROM account_share_periods
WHERE slot = $1`

const selectWithdrawal = `
SELECT client_id, share_id, account_id, period_index, asset_id, checkpoint_index, previous_balance, updated_at
FROM withdrawal_checkpoints
WHERE slot = $1`

// PeriodRepository implements usecase.PeriodRepository. Account records,
// their period timelines, and per-asset withdrawal checkpoints are all
// keyed by slots chained off the share's base slot.
type PeriodRepository struct {
	db querier
}

// NewPeriodRepository creates a new PeriodRepository.
func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{db: pool}
}

func newPeriodRepositoryWithQuerier(db querier) *PeriodRepository {
	return &PeriodRepository{db: db}
}

func accountSlot(clientID, shareID, accountID string) addressing.Slot {
	return addressing.AccountSlot(addressing.BaseSlot(clientID, shareID), accountID)
}

func periodSlot(clientID, shareID, accountID string, periodIndex uint64) addressing.Slot {
	return addressing.PeriodSlot(accountSlot(clientID, shareID, accountID), periodIndex)
}

// GetAccount retrieves an account share record.
func (r *PeriodRepository) GetAccount(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error) {
	slot := accountSlot(clientID, shareID, accountID)

	return scanAccount(r.db.QueryRow(ctx, selectAccount, slot[:]))
}

// GetAccountTx retrieves an account share record within a transaction.
func (r *PeriodRepository) GetAccountTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string) (*domain.AccountShare, error) {
	slot := accountSlot(clientID, shareID, accountID)

	return scanAccount(txQuerier(tx).QueryRow(ctx, selectAccount, slot[:]))
}

// UpsertAccount writes an account share record, creating it on the
// account's first allocation.
func (r *PeriodRepository) UpsertAccount(ctx context.Context, tx usecase.Transaction, account *domain.AccountShare) error {
	slot := accountSlot(account.ClientID, account.ShareID, account.AccountID)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO account_shares (slot, client_id, share_id, account_id, max_period_index, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (slot) DO UPDATE
SET max_period_index = EXCLUDED.max_period_index, updated_at = EXCLUDED.updated_at`,
		slot[:],
		account.ClientID,
		account.ShareID,
		account.AccountID,
		uint64ToNumeric(account.MaxPeriodIndex),
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)

	return err
}

// GetPeriod retrieves one period of an account's timeline.
func (r *PeriodRepository) GetPeriod(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error) {
	slot := periodSlot(clientID, shareID, accountID, periodIndex)

	return scanPeriod(r.db.QueryRow(ctx, selectPeriod, slot[:]))
}

// GetPeriodTx retrieves one period within a transaction.
func (r *PeriodRepository) GetPeriodTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error) {
	slot := periodSlot(clientID, shareID, accountID, periodIndex)

	return scanPeriod(txQuerier(tx).QueryRow(ctx, selectPeriod, slot[:]))
}

// ListOpenPeriods lists every account's open period under a share. Runs
// inside the caller's transaction because the result decides how periods
// roll on a checkpoint advance.
func (r *PeriodRepository) ListOpenPeriods(ctx context.Context, tx usecase.Transaction, clientID, shareID string) ([]*domain.AccountSharePeriod, error) {
	rows, err := txQuerier(tx).Query(ctx, `
SELECT client_id, share_id, account_id, period_index, bps, start_checkpoint, end_checkpoint,
       initialized_at, removable_at, last_withdrawn_at
FROM account_share_periods
WHERE client_id = $1 AND share_id = $2 AND end_checkpoint IS NULL
ORDER BY account_id`,
		clientID, shareID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []*domain.AccountSharePeriod
	for rows.Next() {
		period, err := scanPeriodRow(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}

	return periods, rows.Err()
}

// CreatePeriod creates a period within a transaction.
func (r *PeriodRepository) CreatePeriod(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error {
	slot := periodSlot(period.ClientID, period.ShareID, period.AccountID, period.PeriodIndex)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO account_share_periods
  (slot, client_id, share_id, account_id, period_index, bps, start_checkpoint, end_checkpoint,
   initialized_at, removable_at, last_withdrawn_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		slot[:],
		period.ClientID,
		period.ShareID,
		period.AccountID,
		uint64ToNumeric(period.PeriodIndex),
		int32(period.Bps),
		uint64ToNumeric(period.StartCheckpoint),
		endCheckpointToNumeric(period.EndCheckpoint),
		timeToPgTimestamptz(period.InitializedAt),
		timeToPgTimestamptz(period.RemovableAt),
		timeToNullTimestamptz(period.LastWithdrawnAt),
	)

	return err
}

// UpdatePeriod writes back the mutable period fields. Bps and the start
// checkpoint are fixed at creation.
func (r *PeriodRepository) UpdatePeriod(ctx context.Context, tx usecase.Transaction, period *domain.AccountSharePeriod) error {
	slot := periodSlot(period.ClientID, period.ShareID, period.AccountID, period.PeriodIndex)

	_, err := txQuerier(tx).Exec(ctx, `
UPDATE account_share_periods
SET end_checkpoint = $2, removable_at = $3, last_withdrawn_at = $4
WHERE slot = $1`,
		slot[:],
		endCheckpointToNumeric(period.EndCheckpoint),
		timeToPgTimestamptz(period.RemovableAt),
		timeToNullTimestamptz(period.LastWithdrawnAt),
	)

	return err
}

// GetWithdrawal retrieves one asset's withdrawal checkpoint for a period.
func (r *PeriodRepository) GetWithdrawal(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	slot := addressing.WithdrawalSlot(periodSlot(clientID, shareID, accountID, periodIndex), assetID)

	return scanWithdrawal(r.db.QueryRow(ctx, selectWithdrawal, slot[:]))
}

// GetWithdrawalTx retrieves one asset's withdrawal checkpoint within a
// transaction.
func (r *PeriodRepository) GetWithdrawalTx(ctx context.Context, tx usecase.Transaction, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	slot := addressing.WithdrawalSlot(periodSlot(clientID, shareID, accountID, periodIndex), assetID)

	return scanWithdrawal(txQuerier(tx).QueryRow(ctx, selectWithdrawal, slot[:]))
}

// UpsertWithdrawal writes a withdrawal checkpoint back, creating the row on
// the period's first withdrawal of the asset.
func (r *PeriodRepository) UpsertWithdrawal(ctx context.Context, tx usecase.Transaction, withdrawal *domain.WithdrawalCheckpoint) error {
	slot := addressing.WithdrawalSlot(
		periodSlot(withdrawal.ClientID, withdrawal.ShareID, withdrawal.AccountID, withdrawal.PeriodIndex),
		withdrawal.AssetID,
	)

	_, err := txQuerier(tx).Exec(ctx, `
INSERT INTO withdrawal_checkpoints
  (slot, client_id, share_id, account_id, period_index, asset_id, checkpoint_index, previous_balance, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (slot) DO UPDATE
SET checkpoint_index = EXCLUDED.checkpoint_index,
    previous_balance = EXCLUDED.previous_balance,
    updated_at = EXCLUDED.updated_at`,
		slot[:],
		withdrawal.ClientID,
		withdrawal.ShareID,
		withdrawal.AccountID,
		uint64ToNumeric(withdrawal.PeriodIndex),
		withdrawal.AssetID,
		uint64ToNumeric(withdrawal.CheckpointIndex),
		uint64ToNumeric(withdrawal.PreviousBalance),
		timeToPgTimestamptz(withdrawal.UpdatedAt),
	)

	return err
}

func scanAccount(row pgx.Row) (*domain.AccountShare, error) {
	var (
		account   domain.AccountShare
		maxIndex  pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&account.ClientID, &account.ShareID, &account.AccountID, &maxIndex, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountShareNotFound
		}

		return nil, err
	}

	account.MaxPeriodIndex = numericToUint64(maxIndex)
	account.CreatedAt = pgTimestamptzToTime(createdAt)
	account.UpdatedAt = pgTimestamptzToTime(updatedAt)

	return &account, nil
}

func scanPeriod(row pgx.Row) (*domain.AccountSharePeriod, error) {
	period, err := scanPeriodRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPeriodNotFound
		}

		return nil, err
	}

	return period, nil
}

func scanPeriodRow(row pgx.Row) (*domain.AccountSharePeriod, error) {
	var (
		period          domain.AccountSharePeriod
		index           pgtype.Numeric
		bps             int32
		start           pgtype.Numeric
		end             pgtype.Numeric
		initializedAt   pgtype.Timestamptz
		removableAt     pgtype.Timestamptz
		lastWithdrawnAt pgtype.Timestamptz
	)

	err := row.Scan(&period.ClientID, &period.ShareID, &period.AccountID, &index, &bps,
		&start, &end, &initializedAt, &removableAt, &lastWithdrawnAt)
	if err != nil {
		return nil, err
	}

	period.PeriodIndex = numericToUint64(index)
	period.Bps = uint16(bps)
	period.StartCheckpoint = numericToUint64(start)
	period.EndCheckpoint = numericToEndCheckpoint(end)
	period.InitializedAt = pgTimestamptzToTime(initializedAt)
	period.RemovableAt = pgTimestamptzToTime(removableAt)
	period.LastWithdrawnAt = pgTimestamptzToTime(lastWithdrawnAt)

	return &period, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalCheckpoint, error) {
	var (
		withdrawal domain.WithdrawalCheckpoint
		index      pgtype.Numeric
		checkpoint pgtype.Numeric
		previous   pgtype.Numeric
		updatedAt  pgtype.Timestamptz
	)

	err := row.Scan(&withdrawal.ClientID, &withdrawal.ShareID, &withdrawal.AccountID,
		&index, &withdrawal.AssetID, &checkpoint, &previous, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}

		return nil, err
	}

	withdrawal.PeriodIndex = numericToUint64(index)
	withdrawal.CheckpointIndex = numericToUint64(checkpoint)
	withdrawal.PreviousBalance = numericToUint64(previous)
	withdrawal.UpdatedAt = pgTimestamptzToTime(updatedAt)

	return &withdrawal, nil
}
