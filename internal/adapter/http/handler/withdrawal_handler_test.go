package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

type withdrawalServiceStub struct {
	withdrawFn   func(ctx context.Context, input usecase.WithdrawInput) (*usecase.WithdrawResult, error)
	previewFn    func(ctx context.Context, input usecase.WithdrawInput) (uint64, error)
	checkpointFn func(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error)
}

func (s *withdrawalServiceStub) Withdraw(ctx context.Context, input usecase.WithdrawInput) (*usecase.WithdrawResult, error) {
	return s.withdrawFn(ctx, input)
}

func (s *withdrawalServiceStub) PreviewWithdrawal(ctx context.Context, input usecase.WithdrawInput) (uint64, error) {
	return s.previewFn(ctx, input)
}

func (s *withdrawalServiceStub) GetWithdrawalCheckpoint(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
	return s.checkpointFn(ctx, clientID, shareID, accountID, periodIndex, assetID)
}

func TestWithdrawalHandler_Create_Success(t *testing.T) {
	handler := NewWithdrawalHandler(&withdrawalServiceStub{
		withdrawFn: func(ctx context.Context, input usecase.WithdrawInput) (*usecase.WithdrawResult, error) {
			return &usecase.WithdrawResult{
				Amount:          1250,
				PeriodIndex:     input.PeriodIndex,
				AssetID:         input.AssetID,
				CheckpointIndex: 3,
			}, nil
		},
	})

	body, _ := json.Marshal(dto.WithdrawRequest{PeriodIndex: 1, AssetID: "usd"})
	req := newShareRequest(http.MethodPost, "/withdrawals", body, map[string]string{
		"clientID":  "client-1",
		"shareID":   "revenue",
		"accountID": "acct-x",
	})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.WithdrawResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Amount != "1250" || resp.CheckpointIndex != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWithdrawalHandler_Create_Regression(t *testing.T) {
	handler := NewWithdrawalHandler(&withdrawalServiceStub{
		withdrawFn: func(ctx context.Context, input usecase.WithdrawInput) (*usecase.WithdrawResult, error) {
			return nil, domain.ErrWithdrawalRegression
		},
	})

	body, _ := json.Marshal(dto.WithdrawRequest{PeriodIndex: 0, AssetID: "usd"})
	req := newShareRequest(http.MethodPost, "/withdrawals", body, map[string]string{
		"clientID":  "client-1",
		"shareID":   "revenue",
		"accountID": "acct-x",
	})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestWithdrawalHandler_Withdrawable(t *testing.T) {
	handler := NewWithdrawalHandler(&withdrawalServiceStub{
		previewFn: func(ctx context.Context, input usecase.WithdrawInput) (uint64, error) {
			if input.PeriodIndex != 2 || input.AssetID != "usd" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return 9999, nil
		},
	})

	req := newShareRequest(http.MethodGet, "/withdrawable?period=2&asset=usd", nil, map[string]string{
		"clientID":  "client-1",
		"shareID":   "revenue",
		"accountID": "acct-x",
	})
	rec := httptest.NewRecorder()

	handler.Withdrawable(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.WithdrawableResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Amount != "9999" {
		t.Fatalf("expected amount 9999, got %q", resp.Amount)
	}
}

func TestWithdrawalHandler_GetCheckpoint_NotFound(t *testing.T) {
	handler := NewWithdrawalHandler(&withdrawalServiceStub{
		checkpointFn: func(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error) {
			return nil, domain.ErrCheckpointNotFound
		},
	})

	req := newShareRequest(http.MethodGet, "/", nil, map[string]string{
		"clientID":  "client-1",
		"shareID":   "revenue",
		"accountID": "acct-x",
		"index":     "0",
		"assetID":   "usd",
	})
	rec := httptest.NewRecorder()

	handler.GetCheckpoint(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
