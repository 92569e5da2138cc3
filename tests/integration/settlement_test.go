package integration

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
	"github.com/BCJdevelopment/balance-shares-protocol/tests/testutil"
)

func TestSettlement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	shareUC, depositUC, withdrawalUC := newUseCases(testDB)

	deposit := func(t *testing.T, assetID string, amount uint64) *usecase.RecordDepositResult {
		t.Helper()

		result, err := depositUC.RecordDeposit(ctx, usecase.RecordDepositInput{
			ClientID: "client-1",
			ShareID:  "revenue",
			AssetID:  assetID,
			Amount:   amount,
		})
		if err != nil {
			t.Fatalf("failed to record deposit: %v", err)
		}
		return result
	}

	withdraw := func(t *testing.T, accountID string, periodIndex uint64, assetID string) *usecase.WithdrawResult {
		t.Helper()

		result, err := withdrawalUC.Withdraw(ctx, usecase.WithdrawInput{
			ClientID:    "client-1",
			ShareID:     "revenue",
			AccountID:   accountID,
			PeriodIndex: periodIndex,
			AssetID:     assetID,
		})
		if err != nil {
			t.Fatalf("failed to withdraw for %s: %v", accountID, err)
		}
		return result
	}

	t.Run("deposits split by bps against total", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 7500)

		deposit(t, "usd", 10000)

		result := withdraw(t, "acc-1", 0, "usd")
		if result.Amount != 2500 {
			t.Errorf("expected acc-1 to settle 2500, got %d", result.Amount)
		}

		// Withdrawing again before new deposits settles nothing.
		result = withdraw(t, "acc-1", 0, "usd")
		if result.Amount != 0 {
			t.Errorf("expected repeat withdrawal to settle 0, got %d", result.Amount)
		}

		result = withdraw(t, "acc-2", 0, "usd")
		if result.Amount != 7500 {
			t.Errorf("expected acc-2 to settle 7500, got %d", result.Amount)
		}
	})

	t.Run("incremental deposits settle incrementally", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 7500)

		deposit(t, "usd", 10000)
		withdraw(t, "acc-1", 0, "usd")

		deposit(t, "usd", 4000)
		result := withdraw(t, "acc-1", 0, "usd")
		if result.Amount != 1000 {
			t.Errorf("expected incremental settlement of 1000, got %d", result.Amount)
		}

		checkpoint, err := withdrawalUC.GetWithdrawalCheckpoint(ctx, "client-1", "revenue", "acc-1", 0, "usd")
		if err != nil {
			t.Fatalf("failed to get withdrawal checkpoint: %v", err)
		}
		if checkpoint.PreviousBalance != 14000 {
			t.Errorf("expected marker balance 14000, got %d", checkpoint.PreviousBalance)
		}
	})

	t.Run("floored remainders carry and conserve the total", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 3333)
		mustSetShare(ctx, t, shareUC, "acc-2", 6667)

		deposit(t, "usd", 9999)

		a := withdraw(t, "acc-1", 0, "usd").Amount
		b := withdraw(t, "acc-2", 0, "usd").Amount

		if a+b != 9999 {
			t.Errorf("settlements must conserve the deposit: %d + %d != 9999", a, b)
		}

		sum, err := shareUC.GetCheckpointBalance(ctx, "client-1", "revenue", 0, "usd")
		if err != nil {
			t.Fatalf("failed to get checkpoint balance: %v", err)
		}
		if sum.Remainder != 0 {
			t.Errorf("expected remainder fully consumed, got %d", sum.Remainder)
		}
	})

	t.Run("overflow opens a new checkpoint", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)

		deposit(t, "usd", math.MaxUint64)
		result := deposit(t, "usd", 300)

		if !result.OpenedCheckpoint {
			t.Fatal("expected overflow deposit to open a checkpoint")
		}
		if result.CheckpointIndex != 1 {
			t.Errorf("expected overflow to land in checkpoint 1, got %d", result.CheckpointIndex)
		}

		sealed, err := shareUC.GetCheckpointBalance(ctx, "client-1", "revenue", 0, "usd")
		if err != nil {
			t.Fatalf("failed to get sealed checkpoint balance: %v", err)
		}
		if sealed.Balance != domain.MaxBalanceSum {
			t.Errorf("expected sealed checkpoint at max balance, got %d", sealed.Balance)
		}

		// The sole recipient takes the full sealed checkpoint. Settlement
		// stops there because adding checkpoint 1 would overflow the payout.
		first := withdraw(t, "acc-1", 0, "usd")
		if first.Amount != math.MaxUint64 {
			t.Errorf("expected full first checkpoint %d, got %d", uint64(math.MaxUint64), first.Amount)
		}
		if first.CheckpointIndex != 0 {
			t.Errorf("expected settlement to stop at checkpoint 0, got %d", first.CheckpointIndex)
		}

		second := withdraw(t, "acc-1", 0, "usd")
		if second.Amount != 300 {
			t.Errorf("expected second withdrawal to settle 300, got %d", second.Amount)
		}
		if second.CheckpointIndex != 1 {
			t.Errorf("expected second settlement to reach checkpoint 1, got %d", second.CheckpointIndex)
		}
	})

	t.Run("closed period settles only to its boundary", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 2500)

		deposit(t, "usd", 10000)
		mustSetShare(ctx, t, shareUC, "acc-1", 5000)
		deposit(t, "usd", 8000)

		// Period 0 covers checkpoint 0 only: 10000 * 2500 / 5000.
		closed := withdraw(t, "acc-1", 0, "usd")
		if closed.Amount != 5000 {
			t.Errorf("expected closed period to settle 5000, got %d", closed.Amount)
		}

		// Period 1 covers checkpoint 1: floor(8000 * 5000 / 7500).
		open := withdraw(t, "acc-1", 1, "usd")
		if open.Amount != 5333 {
			t.Errorf("expected open period to settle 5333, got %d", open.Amount)
		}
	})

	t.Run("preview does not advance the checkpoint", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 7500)

		deposit(t, "usd", 10000)

		input := usecase.WithdrawInput{
			ClientID:    "client-1",
			ShareID:     "revenue",
			AccountID:   "acc-1",
			PeriodIndex: 0,
			AssetID:     "usd",
		}

		preview, err := withdrawalUC.PreviewWithdrawal(ctx, input)
		if err != nil {
			t.Fatalf("failed to preview: %v", err)
		}
		if preview != 2500 {
			t.Errorf("expected preview of 2500, got %d", preview)
		}

		// The real withdrawal still settles the full amount.
		result := withdraw(t, "acc-1", 0, "usd")
		if result.Amount != 2500 {
			t.Errorf("expected withdrawal of 2500 after preview, got %d", result.Amount)
		}
	})

	t.Run("assets accumulate independently", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 7500)

		deposit(t, "usd", 10000)
		deposit(t, "eur", 4000)

		if got := withdraw(t, "acc-1", 0, "usd").Amount; got != 2500 {
			t.Errorf("expected usd settlement 2500, got %d", got)
		}
		if got := withdraw(t, "acc-1", 0, "eur").Amount; got != 1000 {
			t.Errorf("expected eur settlement 1000, got %d", got)
		}
	})

	t.Run("unknown account cannot withdraw", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)

		_, err := withdrawalUC.Withdraw(ctx, usecase.WithdrawInput{
			ClientID:    "client-1",
			ShareID:     "revenue",
			AccountID:   "stranger",
			PeriodIndex: 0,
			AssetID:     "usd",
		})
		if !errors.Is(err, domain.ErrAccountShareNotFound) {
			t.Errorf("expected ErrAccountShareNotFound, got %v", err)
		}
	})
}
