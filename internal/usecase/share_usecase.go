package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

// ShareUseCase maintains balance share roots and account share period
// timelines.
type ShareUseCase struct {
	txManager      TransactionManager
	shareRepo      ShareRepository
	checkpointRepo CheckpointRepository
	periodRepo     PeriodRepository
	eventRepo      EventRepository
	idGen          IDGenerator
	cache          Cache
	retrier        Retrier
}

// NewShareUseCase creates a new ShareUseCase.
func NewShareUseCase(
	txManager TransactionManager,
	shareRepo ShareRepository,
	checkpointRepo CheckpointRepository,
	periodRepo PeriodRepository,
	eventRepo EventRepository,
	idGen IDGenerator,
	cache Cache,
) *ShareUseCase {
	return &ShareUseCase{
		txManager:      txManager,
		shareRepo:      shareRepo,
		checkpointRepo: checkpointRepo,
		periodRepo:     periodRepo,
		eventRepo:      eventRepo,
		idGen:          idGen,
		cache:          cache,
	}
}

// WithRetrier makes share changes retry on transient lock conflicts.
func (uc *ShareUseCase) WithRetrier(r Retrier) *ShareUseCase {
	uc.retrier = r
	return uc
}

// SetAccountShareInput represents input for setting an account's allocation.
type SetAccountShareInput struct {
	ClientID    string
	ShareID     string
	AccountID   string
	Bps         uint16
	RemovableAt time.Time
}

// SetAccountShare opens, re-weights, or (with bps 0) removes an account's
// allocation. If the account already has an open period it is closed at the
// boundary checkpoint and a new one opened at the same index.
//
// When the current checkpoint has accumulated balances, the total bps change
// opens a new checkpoint and every open period rolls over to it, so a
// period's checkpoint range always sees a single total bps. When nothing has
// accumulated yet, the current checkpoint's total is rewritten in place and
// the index does not move.
func (uc *ShareUseCase) SetAccountShare(ctx context.Context, input SetAccountShareInput) (*domain.AccountSharePeriod, error) {
	if err := validateShareKey(input.ClientID, input.ShareID); err != nil {
		return nil, err
	}

	if err := domain.ValidateAccountID(input.AccountID); err != nil {
		return nil, err
	}

	if err := domain.ValidateBps(input.Bps); err != nil {
		return nil, err
	}

	var period *domain.AccountSharePeriod
	operation := func() error {
		var err error
		period, err = uc.setAccountShare(ctx, input)
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

	uc.invalidateStatus(ctx, input.ClientID, input.ShareID)

	return period, nil
}

func (uc *ShareUseCase) setAccountShare(ctx context.Context, input SetAccountShareInput) (*domain.AccountSharePeriod, error) {
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

	openPeriods, err := uc.periodRepo.ListOpenPeriods(txCtx, tx, input.ClientID, input.ShareID)
	if err != nil {
		return nil, err
	}

	var current *domain.AccountSharePeriod

	var othersBps uint32
	for _, p := range openPeriods {
		if p.AccountID == input.AccountID {
			current = p
			continue
		}

		othersBps += uint32(p.Bps)
	}

	// Only reductions are time-locked; raising an allocation is always
	// allowed.
	if current != nil && input.Bps < current.Bps && current.Locked(now) {
		return nil, fmt.Errorf("%w: removable at %s", domain.ErrPeriodLocked, current.RemovableAt.Format(time.RFC3339))
	}

	if othersBps+uint32(input.Bps) > uint32(domain.MaxBps) {
		return nil, domain.ErrTotalBpsExceeded
	}

	newTotal := uint16(othersBps) + input.Bps

	boundary, err := uc.advanceForBpsChange(txCtx, tx, share, newTotal, openPeriods, input.AccountID, now)
	if err != nil {
		return nil, err
	}

	account, err := uc.periodRepo.GetAccountTx(txCtx, tx, input.ClientID, input.ShareID, input.AccountID)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountShareNotFound) {
			return nil, err
		}

		account = &domain.AccountShare{
			ClientID:  input.ClientID,
			ShareID:   input.ShareID,
			AccountID: input.AccountID,
			CreatedAt: now,
		}
	}

	periodIndex := uint64(0)
	if current != nil {
		current.EndCheckpoint = boundary
		if err := uc.periodRepo.UpdatePeriod(txCtx, tx, current); err != nil {
			return nil, err
		}

		periodIndex = account.MaxPeriodIndex + 1
	}

	period := &domain.AccountSharePeriod{
		ClientID:        input.ClientID,
		ShareID:         input.ShareID,
		AccountID:       input.AccountID,
		PeriodIndex:     periodIndex,
		Bps:             input.Bps,
		StartCheckpoint: boundary,
		EndCheckpoint:   domain.OpenEndCheckpoint,
		InitializedAt:   now,
		RemovableAt:     input.RemovableAt,
	}

	if err := uc.periodRepo.CreatePeriod(txCtx, tx, period); err != nil {
		return nil, err
	}

	account.MaxPeriodIndex = periodIndex
	account.UpdatedAt = now
	if err := uc.periodRepo.UpsertAccount(txCtx, tx, account); err != nil {
		return nil, err
	}

	eventType := domain.EventTypeShareUpdated
	if input.Bps == 0 {
		eventType = domain.EventTypeShareRemoved
	}

	event := &domain.LedgerEvent{
		ID:            uc.idGen.Generate(),
		ClientID:      input.ClientID,
		ShareID:       input.ShareID,
		AggregateID:   input.AccountID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     eventType,
		Payload: map[string]any{
			"account_id":   input.AccountID,
			"bps":          input.Bps,
			"period_index": periodIndex,
			"total_bps":    newTotal,
			"removable_at": input.RemovableAt.Format(time.RFC3339),
		},
		CreatedAt: now,
	}
	if err := uc.eventRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return period, nil
}

// RemoveAccountShare removes an account's allocation, subject to the open
// period's removable time.
func (uc *ShareUseCase) RemoveAccountShare(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountSharePeriod, error) {
	return uc.SetAccountShare(ctx, SetAccountShareInput{
		ClientID:    clientID,
		ShareID:     shareID,
		AccountID:   accountID,
		Bps:         0,
		RemovableAt: time.Now().UTC(),
	})
}

// advanceForBpsChange moves the ledger to the checkpoint that will carry the
// new total bps and returns its index, rolling open periods of other
// accounts when the index moved. The caller handles the changed account's
// own period.
func (uc *ShareUseCase) advanceForBpsChange(
	ctx context.Context,
	tx Transaction,
	share *domain.BalanceShare,
	newTotal uint16,
	openPeriods []*domain.AccountSharePeriod,
	changedAccountID string,
	now time.Time,
) (uint64, error) {
	checkpoint, err := uc.checkpointRepo.GetTx(ctx, tx, share.ClientID, share.ShareID, share.CheckpointIndex)
	if err != nil {
		return 0, err
	}

	if !checkpoint.HasBalances {
		// Nothing accumulated in this epoch yet: rewrite the total in
		// place, the index does not move.
		if checkpoint.TotalBps != newTotal {
			if err := uc.checkpointRepo.UpdateTotalBps(ctx, tx, share.ClientID, share.ShareID, checkpoint.Index, newTotal); err != nil {
				return 0, err
			}
		}

		share.TotalBps = newTotal
		share.UpdatedAt = now
		if err := uc.shareRepo.Update(ctx, tx, share); err != nil {
			return 0, err
		}

		return checkpoint.Index, nil
	}

	boundary := share.CheckpointIndex + 1

	if err := uc.checkpointRepo.Create(ctx, tx, &domain.BalanceSumCheckpoint{
		ClientID:  share.ClientID,
		ShareID:   share.ShareID,
		Index:     boundary,
		TotalBps:  newTotal,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}

	share.CheckpointIndex = boundary
	share.TotalBps = newTotal
	share.UpdatedAt = now
	if err := uc.shareRepo.Update(ctx, tx, share); err != nil {
		return 0, err
	}

	// Every other open period rolls over to the new checkpoint so its bps
	// keeps applying against a single total.
	for _, p := range openPeriods {
		if p.AccountID == changedAccountID {
			continue
		}

		p.EndCheckpoint = boundary
		if err := uc.periodRepo.UpdatePeriod(ctx, tx, p); err != nil {
			return 0, err
		}

		next := &domain.AccountSharePeriod{
			ClientID:        p.ClientID,
			ShareID:         p.ShareID,
			AccountID:       p.AccountID,
			PeriodIndex:     p.PeriodIndex + 1,
			Bps:             p.Bps,
			StartCheckpoint: boundary,
			EndCheckpoint:   domain.OpenEndCheckpoint,
			InitializedAt:   now,
			RemovableAt:     p.RemovableAt,
			LastWithdrawnAt: p.LastWithdrawnAt,
		}
		if err := uc.periodRepo.CreatePeriod(ctx, tx, next); err != nil {
			return 0, err
		}

		account, err := uc.periodRepo.GetAccountTx(ctx, tx, p.ClientID, p.ShareID, p.AccountID)
		if err != nil {
			return 0, err
		}

		account.MaxPeriodIndex = next.PeriodIndex
		account.UpdatedAt = now
		if err := uc.periodRepo.UpsertAccount(ctx, tx, account); err != nil {
			return 0, err
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
			"index":     boundary,
			"total_bps": newTotal,
			"reason":    "bps_change",
		},
		CreatedAt: now,
	}
	if err := uc.eventRepo.Create(ctx, tx, event); err != nil {
		return 0, err
	}

	return boundary, nil
}

// ShareStatus is the queryable state of a balance share root.
type ShareStatus struct {
	ClientID        string `json:"client_id"`
	ShareID         string `json:"share_id"`
	CheckpointIndex uint64 `json:"checkpoint_index"`
	TotalBps        uint16 `json:"total_bps"`
}

// GetShareStatus returns the current checkpoint index and total bps.
func (uc *ShareUseCase) GetShareStatus(ctx context.Context, clientID, shareID string) (*ShareStatus, error) {
	if err := validateShareKey(clientID, shareID); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if cached, err := uc.cache.Get(ctx, statusCacheKey(clientID, shareID)); err == nil {
			var status ShareStatus
			if err := json.Unmarshal([]byte(cached), &status); err == nil {
				return &status, nil
			}
		}
	}

	share, err := uc.shareRepo.Get(ctx, clientID, shareID)
	if err != nil {
		return nil, err
	}

	status := &ShareStatus{
		ClientID:        share.ClientID,
		ShareID:         share.ShareID,
		CheckpointIndex: share.CheckpointIndex,
		TotalBps:        share.TotalBps,
	}

	if uc.cache != nil {
		if encoded, err := json.Marshal(status); err == nil {
			_ = uc.cache.Set(ctx, statusCacheKey(clientID, shareID), string(encoded), shareStatusCacheTTL)
		}
	}

	return status, nil
}

// GetAccountShare returns an account's share record.
func (uc *ShareUseCase) GetAccountShare(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error) {
	return uc.periodRepo.GetAccount(ctx, clientID, shareID, accountID)
}

// GetPeriod returns one period of an account's timeline, bounds-checked
// against the account's recorded history.
func (uc *ShareUseCase) GetPeriod(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error) {
	account, err := uc.periodRepo.GetAccount(ctx, clientID, shareID, accountID)
	if err != nil {
		return nil, err
	}

	if periodIndex > account.MaxPeriodIndex {
		return nil, &domain.PeriodIndexError{Requested: periodIndex, Max: account.MaxPeriodIndex}
	}

	return uc.periodRepo.GetPeriod(ctx, clientID, shareID, accountID, periodIndex)
}

// GetCheckpointBalance returns one asset's accumulator at a checkpoint.
func (uc *ShareUseCase) GetCheckpointBalance(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error) {
	if err := domain.ValidateAssetID(assetID); err != nil {
		return nil, err
	}

	share, err := uc.shareRepo.Get(ctx, clientID, shareID)
	if err != nil {
		return nil, err
	}

	if index > share.CheckpointIndex {
		return nil, domain.ErrCheckpointNotFound
	}

	sum, err := uc.checkpointRepo.GetBalanceSum(ctx, clientID, shareID, index, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			// Checkpoint exists but the asset never accumulated in it.
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

func (uc *ShareUseCase) invalidateStatus(ctx context.Context, clientID, shareID string) {
	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, statusCacheKey(clientID, shareID))
	}
}

func statusCacheKey(clientID, shareID string) string {
	return "share-status:" + clientID + ":" + shareID
}

func validateShareKey(clientID, shareID string) error {
	if err := domain.ValidateClientID(clientID); err != nil {
		return err
	}

	return domain.ValidateShareID(shareID)
}

// ensureShareForUpdate locks the share root row, creating the root and its
// checkpoint 0 on first use by a (client, share-id) pair.
func ensureShareForUpdate(
	ctx context.Context,
	tx Transaction,
	shareRepo ShareRepository,
	checkpointRepo CheckpointRepository,
	clientID, shareID string,
	now time.Time,
) (*domain.BalanceShare, error) {
	share, err := shareRepo.GetForUpdate(ctx, tx, clientID, shareID)
	if err == nil {
		return share, nil
	}

	if !errors.Is(err, domain.ErrShareNotFound) {
		return nil, err
	}

	share = &domain.BalanceShare{
		ClientID:  clientID,
		ShareID:   shareID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := shareRepo.Create(ctx, tx, share); err != nil {
		return nil, err
	}

	checkpoint := &domain.BalanceSumCheckpoint{
		ClientID:  clientID,
		ShareID:   shareID,
		CreatedAt: now,
	}

	if err := checkpointRepo.Create(ctx, tx, checkpoint); err != nil {
		return nil, err
	}

	return share, nil
}
