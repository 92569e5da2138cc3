package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase/mocks"
)

type fixture struct {
	shareRepo      *mocks.MockShareRepository
	checkpointRepo *mocks.MockCheckpointRepository
	periodRepo     *mocks.MockPeriodRepository
	eventRepo      *mocks.MockEventRepository
	cache          *mocks.MockCache

	shares      *usecase.ShareUseCase
	deposits    *usecase.DepositUseCase
	withdrawals *usecase.WithdrawalUseCase
}

func newFixture() *fixture {
	f := &fixture{
		shareRepo:      mocks.NewMockShareRepository(),
		checkpointRepo: mocks.NewMockCheckpointRepository(),
		periodRepo:     mocks.NewMockPeriodRepository(),
		eventRepo:      mocks.NewMockEventRepository(),
		cache:          mocks.NewMockCache(),
	}

	txManager := mocks.NewMockTransactionManager()
	idGen := mocks.NewMockIDGenerator()

	f.shares = usecase.NewShareUseCase(txManager, f.shareRepo, f.checkpointRepo, f.periodRepo, f.eventRepo, idGen, f.cache)
	f.deposits = usecase.NewDepositUseCase(txManager, f.shareRepo, f.checkpointRepo, f.eventRepo, idGen, f.cache, nil)
	f.withdrawals = usecase.NewWithdrawalUseCase(txManager, f.shareRepo, f.checkpointRepo, f.periodRepo, f.eventRepo, idGen, nil)

	return f
}

func (f *fixture) setShare(t *testing.T, accountID string, bps uint16) *domain.AccountSharePeriod {
	t.Helper()

	period, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:  "client-1",
		ShareID:   "revenue",
		AccountID: accountID,
		Bps:       bps,
	})
	if err != nil {
		t.Fatalf("SetAccountShare(%s, %d) failed: %v", accountID, bps, err)
	}
	return period
}

func (f *fixture) deposit(t *testing.T, assetID string, amount uint64) *usecase.RecordDepositResult {
	t.Helper()

	result, err := f.deposits.RecordDeposit(context.Background(), usecase.RecordDepositInput{
		ClientID: "client-1",
		ShareID:  "revenue",
		AssetID:  assetID,
		Amount:   amount,
	})
	if err != nil {
		t.Fatalf("RecordDeposit(%s, %d) failed: %v", assetID, amount, err)
	}
	return result
}

func TestSetAccountShareCreatesShareOnFirstUse(t *testing.T) {
	f := newFixture()

	period := f.setShare(t, "acc-1", 2500)

	if period.PeriodIndex != 0 {
		t.Errorf("expected period index 0, got %d", period.PeriodIndex)
	}
	if period.StartCheckpoint != 0 {
		t.Errorf("expected start checkpoint 0, got %d", period.StartCheckpoint)
	}
	if !period.IsOpen() {
		t.Error("expected period to be open")
	}

	status, err := f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if err != nil {
		t.Fatalf("GetShareStatus failed: %v", err)
	}
	if status.CheckpointIndex != 0 || status.TotalBps != 2500 {
		t.Errorf("unexpected status: index %d total %d", status.CheckpointIndex, status.TotalBps)
	}

	checkpoint, err := f.checkpointRepo.Get(context.Background(), "client-1", "revenue", 0)
	if err != nil {
		t.Fatalf("checkpoint 0 missing: %v", err)
	}
	if checkpoint.TotalBps != 2500 {
		t.Errorf("expected checkpoint total 2500, got %d", checkpoint.TotalBps)
	}

	events := f.eventRepo.Events()
	if len(events) != 1 || events[0].EventType != domain.EventTypeShareUpdated {
		t.Fatalf("expected one share.updated event, got %+v", events)
	}
}

func TestSetAccountShareRewritesTotalInPlaceWithoutBalances(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)
	period := f.setShare(t, "acc-1", 5000)

	// No deposits landed, so the checkpoint index must not move.
	status, _ := f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if status.CheckpointIndex != 0 {
		t.Errorf("expected checkpoint index 0, got %d", status.CheckpointIndex)
	}
	if status.TotalBps != 5000 {
		t.Errorf("expected total 5000, got %d", status.TotalBps)
	}

	if period.PeriodIndex != 1 || period.StartCheckpoint != 0 {
		t.Errorf("expected period 1 starting at 0, got %d starting at %d", period.PeriodIndex, period.StartCheckpoint)
	}

	closed, err := f.shares.GetPeriod(context.Background(), "client-1", "revenue", "acc-1", 0)
	if err != nil {
		t.Fatalf("GetPeriod(0) failed: %v", err)
	}
	if closed.EndCheckpoint != 0 {
		t.Errorf("expected period 0 closed at checkpoint 0, got end %d", closed.EndCheckpoint)
	}
}

func TestSetAccountShareAdvancesCheckpointWithBalances(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)
	f.deposit(t, "usd", 10000)

	period := f.setShare(t, "acc-2", 2500)

	status, _ := f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if status.CheckpointIndex != 1 {
		t.Fatalf("expected checkpoint index 1 after bps change with balances, got %d", status.CheckpointIndex)
	}
	if status.TotalBps != 5000 {
		t.Errorf("expected total 5000, got %d", status.TotalBps)
	}

	if period.StartCheckpoint != 1 {
		t.Errorf("expected acc-2 period to start at 1, got %d", period.StartCheckpoint)
	}

	// acc-1's open period rolled over to the new checkpoint at the same bps.
	rolled, err := f.shares.GetPeriod(context.Background(), "client-1", "revenue", "acc-1", 1)
	if err != nil {
		t.Fatalf("GetPeriod(acc-1, 1) failed: %v", err)
	}
	if rolled.Bps != 2500 || rolled.StartCheckpoint != 1 || !rolled.IsOpen() {
		t.Errorf("unexpected rolled period: %+v", rolled)
	}

	previous, err := f.shares.GetPeriod(context.Background(), "client-1", "revenue", "acc-1", 0)
	if err != nil {
		t.Fatalf("GetPeriod(acc-1, 0) failed: %v", err)
	}
	if previous.EndCheckpoint != 1 {
		t.Errorf("expected acc-1 period 0 closed at 1, got %d", previous.EndCheckpoint)
	}

	account, err := f.shares.GetAccountShare(context.Background(), "client-1", "revenue", "acc-1")
	if err != nil {
		t.Fatalf("GetAccountShare failed: %v", err)
	}
	if account.MaxPeriodIndex != 1 {
		t.Errorf("expected max period index 1, got %d", account.MaxPeriodIndex)
	}
}

func TestSetAccountShareRejectsTotalOverMax(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 6000)

	_, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:  "client-1",
		ShareID:   "revenue",
		AccountID: "acc-2",
		Bps:       5000,
	})
	if !errors.Is(err, domain.ErrTotalBpsExceeded) {
		t.Fatalf("expected ErrTotalBpsExceeded, got %v", err)
	}

	// A re-weight of the same account counts against the remainder, not its
	// own previous allocation.
	if _, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:  "client-1",
		ShareID:   "revenue",
		AccountID: "acc-1",
		Bps:       10000,
	}); err != nil {
		t.Fatalf("re-weighting acc-1 to the full total should succeed: %v", err)
	}
}

func TestSetAccountShareTimeLock(t *testing.T) {
	f := newFixture()

	future := time.Now().UTC().Add(time.Hour)
	if _, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:    "client-1",
		ShareID:     "revenue",
		AccountID:   "acc-1",
		Bps:         5000,
		RemovableAt: future,
	}); err != nil {
		t.Fatalf("initial set failed: %v", err)
	}

	_, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:  "client-1",
		ShareID:   "revenue",
		AccountID: "acc-1",
		Bps:       2500,
	})
	if !errors.Is(err, domain.ErrPeriodLocked) {
		t.Fatalf("expected ErrPeriodLocked on reduction, got %v", err)
	}

	_, err = f.shares.RemoveAccountShare(context.Background(), "client-1", "revenue", "acc-1")
	if !errors.Is(err, domain.ErrPeriodLocked) {
		t.Fatalf("expected ErrPeriodLocked on removal, got %v", err)
	}

	// Raising is never locked.
	if _, err := f.shares.SetAccountShare(context.Background(), usecase.SetAccountShareInput{
		ClientID:    "client-1",
		ShareID:     "revenue",
		AccountID:   "acc-1",
		Bps:         6000,
		RemovableAt: future,
	}); err != nil {
		t.Fatalf("raising a locked allocation should succeed: %v", err)
	}
}

func TestRemoveAccountShare(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)

	period, err := f.shares.RemoveAccountShare(context.Background(), "client-1", "revenue", "acc-1")
	if err != nil {
		t.Fatalf("RemoveAccountShare failed: %v", err)
	}
	if period.Bps != 0 {
		t.Errorf("expected bps 0 after removal, got %d", period.Bps)
	}

	status, _ := f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if status.TotalBps != 0 {
		t.Errorf("expected total 0 after removal, got %d", status.TotalBps)
	}

	events := f.eventRepo.Events()
	last := events[len(events)-1]
	if last.EventType != domain.EventTypeShareRemoved {
		t.Errorf("expected share.removed event, got %s", last.EventType)
	}
}

func TestSetAccountShareValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		input usecase.SetAccountShareInput
		want  error
	}{
		{
			name:  "empty client",
			input: usecase.SetAccountShareInput{ShareID: "revenue", AccountID: "acc-1", Bps: 100},
			want:  domain.ErrInvalidClientID,
		},
		{
			name:  "empty share",
			input: usecase.SetAccountShareInput{ClientID: "client-1", AccountID: "acc-1", Bps: 100},
			want:  domain.ErrInvalidShareID,
		},
		{
			name:  "bad account",
			input: usecase.SetAccountShareInput{ClientID: "client-1", ShareID: "revenue", AccountID: "has space", Bps: 100},
			want:  domain.ErrInvalidAccountID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.shares.SetAccountShare(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetPeriodBoundsChecked(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)

	_, err := f.shares.GetPeriod(context.Background(), "client-1", "revenue", "acc-1", 5)

	var indexErr *domain.PeriodIndexError
	if !errors.As(err, &indexErr) {
		t.Fatalf("expected PeriodIndexError, got %v", err)
	}
	if indexErr.Requested != 5 || indexErr.Max != 0 {
		t.Errorf("unexpected bounds: %+v", indexErr)
	}
}

func TestGetShareStatusCaching(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)

	if _, err := f.shares.GetShareStatus(context.Background(), "client-1", "revenue"); err != nil {
		t.Fatalf("GetShareStatus failed: %v", err)
	}

	// Poison the repo read path: a cached status must not hit it.
	f.shareRepo.GetFunc = func(ctx context.Context, clientID, shareID string) (*domain.BalanceShare, error) {
		t.Fatal("expected cached read to skip the repository")
		return nil, nil
	}

	status, err := f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if err != nil {
		t.Fatalf("cached GetShareStatus failed: %v", err)
	}
	if status.TotalBps != 2500 {
		t.Errorf("unexpected cached total: %d", status.TotalBps)
	}

	// Mutations invalidate the key.
	f.shareRepo.GetFunc = nil
	f.setShare(t, "acc-1", 5000)

	status, err = f.shares.GetShareStatus(context.Background(), "client-1", "revenue")
	if err != nil {
		t.Fatalf("GetShareStatus after update failed: %v", err)
	}
	if status.TotalBps != 5000 {
		t.Errorf("expected invalidated status to show 5000, got %d", status.TotalBps)
	}
}

func TestGetCheckpointBalance(t *testing.T) {
	f := newFixture()

	f.setShare(t, "acc-1", 2500)
	f.deposit(t, "usd", 750)

	sum, err := f.shares.GetCheckpointBalance(context.Background(), "client-1", "revenue", 0, "usd")
	if err != nil {
		t.Fatalf("GetCheckpointBalance failed: %v", err)
	}
	if sum.Balance != 750 {
		t.Errorf("expected balance 750, got %d", sum.Balance)
	}

	// An asset that never accumulated reads as zero, not as missing.
	sum, err = f.shares.GetCheckpointBalance(context.Background(), "client-1", "revenue", 0, "eur")
	if err != nil {
		t.Fatalf("expected zero-value sum for unseen asset, got error: %v", err)
	}
	if sum.Balance != 0 || sum.Remainder != 0 {
		t.Errorf("expected zero sum, got %+v", sum)
	}

	// An index beyond the current checkpoint does not exist yet.
	if _, err := f.shares.GetCheckpointBalance(context.Background(), "client-1", "revenue", 7, "usd"); !errors.Is(err, domain.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound for future index, got %v", err)
	}
}
