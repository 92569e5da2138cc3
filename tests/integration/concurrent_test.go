package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
	"github.com/BCJdevelopment/balance-shares-protocol/tests/testutil"
)

func TestConcurrentDeposits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	shareUC, depositUC, withdrawalUC := newUseCases(testDB)

	t.Run("100 concurrent deposits accumulate without loss", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)

		numDeposits := 100
		depositAmount := uint64(10)

		var (
			wg           sync.WaitGroup
			successCount atomic.Int32
			errorCount   atomic.Int32
		)

		wg.Add(numDeposits)

		for range numDeposits {
			go func() {
				defer wg.Done()

				_, err := depositUC.RecordDeposit(ctx, usecase.RecordDepositInput{
					ClientID: "client-1",
					ShareID:  "revenue",
					AssetID:  "usd",
					Amount:   depositAmount,
				})
				if err != nil {
					errorCount.Add(1)
				} else {
					successCount.Add(1)
				}
			}()
		}

		wg.Wait()

		if successCount.Load() != int32(numDeposits) {
			t.Errorf("expected %d successful deposits, got %d (errors: %d)", numDeposits, successCount.Load(), errorCount.Load())
		}

		sum, err := shareUC.GetCheckpointBalance(ctx, "client-1", "revenue", 0, "usd")
		if err != nil {
			t.Fatalf("failed to get checkpoint balance: %v", err)
		}
		if sum.Balance != uint64(numDeposits)*depositAmount {
			t.Errorf("expected accumulated balance %d, got %d", uint64(numDeposits)*depositAmount, sum.Balance)
		}
	})

	t.Run("concurrent withdrawals settle each account once", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)
		mustSetShare(ctx, t, shareUC, "acc-2", 7500)

		if _, err := depositUC.RecordDeposit(ctx, usecase.RecordDepositInput{
			ClientID: "client-1",
			ShareID:  "revenue",
			AssetID:  "usd",
			Amount:   10000,
		}); err != nil {
			t.Fatalf("failed to record deposit: %v", err)
		}

		// Each account races 10 withdrawals against itself. The withdrawal
		// checkpoint only moves forward, so exactly one attempt per account
		// settles a non-zero amount.
		accounts := []string{"acc-1", "acc-2"}
		attempts := 10

		var (
			wg     sync.WaitGroup
			totals [2]atomic.Uint64
		)

		for i, accountID := range accounts {
			wg.Add(attempts)
			for range attempts {
				go func() {
					defer wg.Done()

					result, err := withdrawalUC.Withdraw(ctx, usecase.WithdrawInput{
						ClientID:    "client-1",
						ShareID:     "revenue",
						AccountID:   accountID,
						PeriodIndex: 0,
						AssetID:     "usd",
					})
					if err != nil {
						t.Errorf("withdrawal failed for %s: %v", accountID, err)
						return
					}
					totals[i].Add(result.Amount)
				}()
			}
		}

		wg.Wait()

		if got := totals[0].Load(); got != 2500 {
			t.Errorf("expected acc-1 to settle 2500 in total, got %d", got)
		}
		if got := totals[1].Load(); got != 7500 {
			t.Errorf("expected acc-2 to settle 7500 in total, got %d", got)
		}
	})

	t.Run("deposits race with share changes", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		mustSetShare(ctx, t, shareUC, "acc-1", 2500)

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			for range 20 {
				if _, err := depositUC.RecordDeposit(ctx, usecase.RecordDepositInput{
					ClientID: "client-1",
					ShareID:  "revenue",
					AssetID:  "usd",
					Amount:   5,
				}); err != nil {
					t.Errorf("deposit failed: %v", err)
				}
			}
		}()

		go func() {
			defer wg.Done()
			for bps := uint16(2600); bps <= 3500; bps += 100 {
				if _, err := shareUC.SetAccountShare(ctx, usecase.SetAccountShareInput{
					ClientID:  "client-1",
					ShareID:   "revenue",
					AccountID: "acc-1",
					Bps:       bps,
				}); err != nil {
					t.Errorf("re-weight failed: %v", err)
				}
			}
		}()

		wg.Wait()

		// Whatever interleaving happened, no deposit may be lost: the sum
		// across all checkpoints must equal the total deposited.
		status, err := shareUC.GetShareStatus(ctx, "client-1", "revenue")
		if err != nil {
			t.Fatalf("failed to get share status: %v", err)
		}

		var accumulated uint64
		for index := uint64(0); index <= status.CheckpointIndex; index++ {
			sum, err := shareUC.GetCheckpointBalance(ctx, "client-1", "revenue", index, "usd")
			if err != nil {
				t.Fatalf("failed to get balance at checkpoint %d: %v", index, err)
			}
			accumulated += sum.Balance
		}

		if accumulated != 100 {
			t.Errorf("expected 100 accumulated across checkpoints, got %d", accumulated)
		}
	})
}
