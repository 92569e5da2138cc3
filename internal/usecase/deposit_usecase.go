package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/metrics"
)

// DepositUseCase accumulates deposits into the current checkpoint. A deposit
// touches the share root and one accumulator row, never the account periods,
// so its cost does not depend on how many recipients the share has.
type DepositUseCase struct {
	txManager      TransactionManager
	shareRepo      ShareRepository
	checkpointRepo CheckpointRepository
	eventRepo      EventRepository
	idGen          IDGenerator
	cache          Cache
	metrics        *metrics.Metrics
	retrier        Retrier
}

// NewDepositUseCase creates a new DepositUseCase.
func NewDepositUseCase(
	txManager TransactionManager,
	shareRepo ShareRepository,
	checkpointRepo CheckpointRepository,
	eventRepo EventRepository,
	idGen IDGenerator,
	cache Cache,
	m *metrics.Metrics,
) *DepositUseCase {
	return &DepositUseCase{
		txManager:      txManager,
		shareRepo:      shareRepo,
		checkpointRepo: checkpointRepo,
		eventRepo:      eventRepo,
		idGen:          idGen,
		cache:          cache,
		metrics:        m,
	}
}

// WithRetrier makes deposits retry on transient lock conflicts.
func (uc *DepositUseCase) WithRetrier(r Retrier) *DepositUseCase {
	uc.retrier = r
	return uc
}

// RecordDepositInput represents input for recording a deposit.
type RecordDepositInput struct {
	ClientID string
	ShareID  string
	AssetID  string
	Amount   uint64
}

// RecordDepositResult reports where the deposit landed.
type RecordDepositResult struct {
	CheckpointIndex  uint64
	Balance          uint64
	OpenedCheckpoint bool
}

// RecordDeposit adds amount to the current checkpoint's accumulator for the
// asset. If the accumulator cannot absorb the whole amount, the current one
// is filled to its bound and a new checkpoint with the same total bps takes
// the rest; an accumulator bound is never an error surfaced to the caller.
func (uc *DepositUseCase) RecordDeposit(ctx context.Context, input RecordDepositInput) (*RecordDepositResult, error) {
	if err := validateShareKey(input.ClientID, input.ShareID); err != nil {
		return nil, err
	}

	if err := domain.ValidateAssetID(input.AssetID); err != nil {
		return nil, err
	}

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	var result *RecordDepositResult
	operation := func() error {
		var err error
		result, err = uc.recordDeposit(ctx, input)
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

	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, statusCacheKey(input.ClientID, input.ShareID))
	}

	if uc.metrics != nil {
		uc.metrics.DepositsRecorded.Inc()
		if result.OpenedCheckpoint {
			uc.metrics.CheckpointsOpened.WithLabelValues("overflow").Inc()
		}
	}

	return result, nil
}

func (uc *DepositUseCase) recordDeposit(ctx context.Context, input RecordDepositInput) (*RecordDepositResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()

	share, err := ensureShareForUpdate(txCtx, tx, uc.shareRepo, uc.checkpointRepo, input.ClientID, input.ShareID, now)
	if err != nil {
		return nil, err
	}

	sum, err := uc.checkpointRepo.GetBalanceSumTx(txCtx, tx, input.ClientID, input.ShareID, share.CheckpointIndex, input.AssetID)
	if err != nil {
		if !errors.Is(err, domain.ErrCheckpointNotFound) {
			return nil, err
		}

		sum = &domain.BalanceSum{
			ClientID:        input.ClientID,
			ShareID:         input.ShareID,
			CheckpointIndex: share.CheckpointIndex,
			AssetID:         input.AssetID,
		}
	}

	applied, overflow := sum.Add(input.Amount)

	if applied > 0 {
		sum.UpdatedAt = now
		if err := uc.checkpointRepo.UpsertBalanceSum(txCtx, tx, sum); err != nil {
			return nil, err
		}

		if err := uc.checkpointRepo.MarkHasBalances(txCtx, tx, input.ClientID, input.ShareID, share.CheckpointIndex); err != nil {
			return nil, err
		}
	}

	result := &RecordDepositResult{
		CheckpointIndex: share.CheckpointIndex,
		Balance:         sum.Balance,
	}

	if overflow {
		rest := input.Amount - applied

		if err := uc.rollCheckpoint(txCtx, tx, share, input.AssetID, rest, now); err != nil {
			return nil, err
		}

		result.CheckpointIndex = share.CheckpointIndex
		result.Balance = rest
		result.OpenedCheckpoint = true
	}

	event := &domain.LedgerEvent{
		ID:            uc.idGen.Generate(),
		ClientID:      input.ClientID,
		ShareID:       input.ShareID,
		AggregateID:   input.ClientID + "/" + input.ShareID,
		AggregateType: domain.AggregateTypeShare,
		EventType:     domain.EventTypeDepositRecorded,
		Payload: map[string]any{
			"asset_id":         input.AssetID,
			"amount":           strconv.FormatUint(input.Amount, 10),
			"checkpoint_index": result.CheckpointIndex,
		},
		CreatedAt: now,
	}
	if err := uc.eventRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// rollCheckpoint opens the next checkpoint with the same total bps and seeds
// it with the overflowed rest of a deposit. Account periods are untouched:
// the epoch's bps did not change.
func (uc *DepositUseCase) rollCheckpoint(
	ctx context.Context,
	tx Transaction,
	share *domain.BalanceShare,
	assetID string,
	rest uint64,
	now time.Time,
) error {
	next := share.CheckpointIndex + 1

	if err := uc.checkpointRepo.Create(ctx, tx, &domain.BalanceSumCheckpoint{
		ClientID:    share.ClientID,
		ShareID:     share.ShareID,
		Index:       next,
		TotalBps:    share.TotalBps,
		HasBalances: rest > 0,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	share.CheckpointIndex = next
	share.UpdatedAt = now
	if err := uc.shareRepo.Update(ctx, tx, share); err != nil {
		return err
	}

	if rest > 0 {
		if err := uc.checkpointRepo.UpsertBalanceSum(ctx, tx, &domain.BalanceSum{
			ClientID:        share.ClientID,
			ShareID:         share.ShareID,
			CheckpointIndex: next,
			AssetID:         assetID,
			Balance:         rest,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
	}

	event := &domain.LedgerEvent{
		ID:            uc.idGen.Generate(),
		ClientID:      share.ClientID,
		ShareID:       share.ShareID,
		AggregateID:   share.ClientID + "/" + share.ShareID,
		AggregateType: domain.AggregateTypeShare,
		EventType:     domain.EventTypeCheckpointOpened,
		Payload: map[string]any{
			"index":     next,
			"total_bps": share.TotalBps,
			"reason":    "overflow",
		},
		CreatedAt: now,
	}

	return uc.eventRepo.Create(ctx, tx, event)
}
