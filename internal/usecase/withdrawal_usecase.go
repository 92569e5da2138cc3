package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/metrics"
)

// WithdrawalUseCase settles accrued balances for account share periods and
// advances their withdrawal checkpoints.
type WithdrawalUseCase struct {
	txManager      TransactionManager
	shareRepo      ShareRepository
	checkpointRepo CheckpointRepository
	periodRepo     PeriodRepository
	eventRepo      EventRepository
	idGen          IDGenerator
	metrics        *metrics.Metrics
	retrier        Retrier
}

// NewWithdrawalUseCase creates a new WithdrawalUseCase.
func NewWithdrawalUseCase(
	txManager TransactionManager,
	shareRepo ShareRepository,
	checkpointRepo CheckpointRepository,
	periodRepo PeriodRepository,
	eventRepo EventRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
) *WithdrawalUseCase {
	return &WithdrawalUseCase{
		txManager:      txManager,
		shareRepo:      shareRepo,
		checkpointRepo: checkpointRepo,
		periodRepo:     periodRepo,
		eventRepo:      eventRepo,
		idGen:          idGen,
		metrics:        m,
	}
}

// WithdrawInput represents input for settling one asset of one period.
type WithdrawInput struct {
	ClientID    string
	ShareID     string
	AccountID   string
	PeriodIndex uint64
	AssetID     string
}

// WithdrawResult reports the settled amount and how far settlement advanced.
type WithdrawResult struct {
	Amount          uint64
	CheckpointIndex uint64
	PeriodIndex     uint64
	AssetID         string
}

// WithRetrier makes Withdraw retry its transaction on transient failures.
func (uc *WithdrawalUseCase) WithRetrier(r Retrier) *WithdrawalUseCase {
	uc.retrier = r
	return uc
}

// Withdraw settles the period's asset from its withdrawal checkpoint through
// the latest settleable checkpoint. The withdrawal checkpoint only ever
// moves forward.
func (uc *WithdrawalUseCase) Withdraw(ctx context.Context, input WithdrawInput) (*WithdrawResult, error) {
	if err := validateWithdrawInput(input); err != nil {
		return nil, err
	}

	var result *WithdrawResult
	operation := func() error {
		var err error
		result, err = uc.withdraw(ctx, input)
		return err
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.WithdrawalsSettled.Inc()
	}

	return result, nil
}

func (uc *WithdrawalUseCase) withdraw(ctx context.Context, input WithdrawInput) (*WithdrawResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()

	// Lock the share root: settlement reads checkpoint accumulators and
	// writes remainders, so it serializes with deposits and share changes.
	share, err := uc.shareRepo.GetForUpdate(txCtx, tx, input.ClientID, input.ShareID)
	if err != nil {
		return nil, err
	}

	account, err := uc.periodRepo.GetAccountTx(txCtx, tx, input.ClientID, input.ShareID, input.AccountID)
	if err != nil {
		return nil, err
	}

	if input.PeriodIndex > account.MaxPeriodIndex {
		return nil, &domain.PeriodIndexError{Requested: input.PeriodIndex, Max: account.MaxPeriodIndex}
	}

	period, err := uc.periodRepo.GetPeriodTx(txCtx, tx, input.ClientID, input.ShareID, input.AccountID, input.PeriodIndex)
	if err != nil {
		return nil, err
	}

	withdrawal, err := uc.periodRepo.GetWithdrawalTx(txCtx, tx, input.ClientID, input.ShareID, input.AccountID, input.PeriodIndex, input.AssetID)
	if err != nil {
		if !errors.Is(err, domain.ErrCheckpointNotFound) {
			return nil, err
		}

		withdrawal = &domain.WithdrawalCheckpoint{
			ClientID:        input.ClientID,
			ShareID:         input.ShareID,
			AccountID:       input.AccountID,
			PeriodIndex:     input.PeriodIndex,
			AssetID:         input.AssetID,
			CheckpointIndex: period.StartCheckpoint,
		}
	}

	total, lastIndex, lastBalance, err := uc.settle(txCtx, tx, share, period, withdrawal, true)
	if err != nil {
		return nil, err
	}

	if err := withdrawal.Advance(lastIndex, lastBalance, now); err != nil {
		return nil, err
	}

	if err := uc.periodRepo.UpsertWithdrawal(txCtx, tx, withdrawal); err != nil {
		return nil, err
	}

	period.LastWithdrawnAt = now
	if err := uc.periodRepo.UpdatePeriod(txCtx, tx, period); err != nil {
		return nil, err
	}

	event := &domain.LedgerEvent{
		ID:            uc.idGen.Generate(),
		ClientID:      input.ClientID,
		ShareID:       input.ShareID,
		AggregateID:   input.AccountID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeWithdrawalRecorded,
		Payload: map[string]any{
			"account_id":       input.AccountID,
			"period_index":     input.PeriodIndex,
			"asset_id":         input.AssetID,
			"amount":           strconv.FormatUint(total, 10),
			"checkpoint_index": lastIndex,
		},
		CreatedAt: now,
	}
	if err := uc.eventRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &WithdrawResult{
		Amount:          total,
		CheckpointIndex: lastIndex,
		PeriodIndex:     input.PeriodIndex,
		AssetID:         input.AssetID,
	}, nil
}

// PreviewWithdrawal computes the currently withdrawable amount without
// advancing any state. The preview runs outside the share lock, so it is a
// point-in-time estimate.
func (uc *WithdrawalUseCase) PreviewWithdrawal(ctx context.Context, input WithdrawInput) (uint64, error) {
	if err := validateWithdrawInput(input); err != nil {
		return 0, err
	}

	share, err := uc.shareRepo.Get(ctx, input.ClientID, input.ShareID)
	if err != nil {
		return 0, err
	}

	account, err := uc.periodRepo.GetAccount(ctx, input.ClientID, input.ShareID, input.AccountID)
	if err != nil {
		return 0, err
	}

	if input.PeriodIndex > account.MaxPeriodIndex {
		return 0, &domain.PeriodIndexError{Requested: input.PeriodIndex, Max: account.MaxPeriodIndex}
	}

	period, err := uc.periodRepo.GetPeriod(ctx, input.ClientID, input.ShareID, input.AccountID, input.PeriodIndex)
	if err != nil {
		return 0, err
	}

	withdrawal, err := uc.periodRepo.GetWithdrawal(ctx, input.ClientID, input.ShareID, input.AccountID, input.PeriodIndex, input.AssetID)
	if err != nil {
		if !errors.Is(err, domain.ErrCheckpointNotFound) {
			return 0, err
		}

		withdrawal = &domain.WithdrawalCheckpoint{
			AssetID:         input.AssetID,
			CheckpointIndex: period.StartCheckpoint,
		}
	}

	total, _, _, err := uc.settle(ctx, nil, share, period, withdrawal, false)

	return total, err
}

// GetWithdrawalCheckpoint returns the settlement marker for (period, asset).
func (uc *WithdrawalUseCase) GetWithdrawalCheckpoint(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	account, err := uc.periodRepo.GetAccount(ctx, clientID, shareID, accountID)
	if err != nil {
		return nil, err
	}

	if periodIndex > account.MaxPeriodIndex {
		return nil, &domain.PeriodIndexError{Requested: periodIndex, Max: account.MaxPeriodIndex}
	}

	return uc.periodRepo.GetWithdrawal(ctx, clientID, shareID, accountID, periodIndex, assetID)
}

// settle walks the checkpoints a period can currently settle against and
// sums the payouts. In apply mode (tx non-nil) it writes the updated
// remainders back; otherwise it only reads. It returns the total payout and
// the index and accumulator snapshot of the last settled checkpoint.
//
// An aggregate payout that would not fit uint64 stops the walk before the
// offending checkpoint; the rest stays withdrawable by a later call.
func (uc *WithdrawalUseCase) settle(
	ctx context.Context,
	tx Transaction,
	share *domain.BalanceShare,
	period *domain.AccountSharePeriod,
	withdrawal *domain.WithdrawalCheckpoint,
	apply bool,
) (total, lastIndex, lastBalance uint64, err error) {
	lastIndex = withdrawal.CheckpointIndex
	lastBalance = withdrawal.PreviousBalance

	through, ok := period.SettleableThrough(share.CheckpointIndex)
	if !ok {
		return 0, lastIndex, lastBalance, nil
	}

	for index := withdrawal.CheckpointIndex; index <= through; index++ {
		checkpoint, err := uc.getCheckpoint(ctx, tx, share.ClientID, share.ShareID, index, apply)
		if err != nil {
			return 0, 0, 0, err
		}

		sum, err := uc.getBalanceSum(ctx, tx, share.ClientID, share.ShareID, index, withdrawal.AssetID, apply)
		if err != nil {
			return 0, 0, 0, err
		}

		increase := sum.Balance
		if index == withdrawal.CheckpointIndex {
			increase -= withdrawal.PreviousBalance
		}

		payout, newRemainder := domain.SettleCheckpoint(increase, period.Bps, checkpoint.TotalBps, sum.Remainder)

		next := total + payout
		if next < total {
			break
		}

		if apply && newRemainder != sum.Remainder {
			sum.Remainder = newRemainder
			sum.UpdatedAt = time.Now().UTC()
			if err := uc.checkpointRepo.UpsertBalanceSum(ctx, tx, sum); err != nil {
				return 0, 0, 0, err
			}
		}

		total = next
		lastIndex = index
		lastBalance = sum.Balance
	}

	return total, lastIndex, lastBalance, nil
}

func (uc *WithdrawalUseCase) getCheckpoint(ctx context.Context, tx Transaction, clientID, shareID string, index uint64, inTx bool) (*domain.BalanceSumCheckpoint, error) {
	if inTx {
		return uc.checkpointRepo.GetTx(ctx, tx, clientID, shareID, index)
	}

	return uc.checkpointRepo.Get(ctx, clientID, shareID, index)
}

func (uc *WithdrawalUseCase) getBalanceSum(
	ctx context.Context,
	tx Transaction,
	clientID, shareID string,
	index uint64,
	assetID string,
	inTx bool,
) (*domain.BalanceSum, error) {
	var (
		sum *domain.BalanceSum
		err error
	)

	if inTx {
		sum, err = uc.checkpointRepo.GetBalanceSumTx(ctx, tx, clientID, shareID, index, assetID)
	} else {
		sum, err = uc.checkpointRepo.GetBalanceSum(ctx, clientID, shareID, index, assetID)
	}

	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			// The asset never accumulated in this checkpoint.
			return &domain.BalanceSum{
				ClientID:        clientID,
				ShareID:         shareID,
				CheckpointIndex: index,
				AssetID:         assetID,
			}, nil
		}

		return nil, err
	}

	return sum, nil
}

func validateWithdrawInput(input WithdrawInput) error {
	if err := validateShareKey(input.ClientID, input.ShareID); err != nil {
		return err
	}

	if err := domain.ValidateAccountID(input.AccountID); err != nil {
		return err
	}

	return domain.ValidateAssetID(input.AssetID)
}
