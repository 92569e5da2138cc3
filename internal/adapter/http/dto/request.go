package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// SetAccountShareRequest represents a request to set an account's
// allocation. Bps 0 removes the allocation.
type SetAccountShareRequest struct {
	Bps         uint16     `json:"bps"`
	RemovableAt *time.Time `json:"removable_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetAccountShareRequest) ToUseCaseInput(clientID, shareID, accountID string) usecase.SetAccountShareInput {
	input := usecase.SetAccountShareInput{
		ClientID:  clientID,
		ShareID:   shareID,
		AccountID: accountID,
		Bps:       r.Bps,
	}
	if r.RemovableAt != nil {
		input.RemovableAt = *r.RemovableAt
	}

	return input
}

// RecordDepositRequest represents a request to record an incoming balance.
// Amount is a decimal string: JSON numbers cannot carry the full uint64
// range without loss.
type RecordDepositRequest struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordDepositRequest) ToUseCaseInput(clientID, shareID string) (usecase.RecordDepositInput, error) {
	amount, err := strconv.ParseUint(r.Amount, 10, 64)
	if err != nil {
		return usecase.RecordDepositInput{}, fmt.Errorf("amount must be an unsigned decimal string: %w", err)
	}

	return usecase.RecordDepositInput{
		ClientID: clientID,
		ShareID:  shareID,
		AssetID:  r.AssetID,
		Amount:   amount,
	}, nil
}

// WithdrawRequest represents a request to settle one asset of one period.
type WithdrawRequest struct {
	PeriodIndex uint64 `json:"period_index"`
	AssetID     string `json:"asset_id"`
}

// ToUseCaseInput converts to use case input.
func (r *WithdrawRequest) ToUseCaseInput(clientID, shareID, accountID string) usecase.WithdrawInput {
	return usecase.WithdrawInput{
		ClientID:    clientID,
		ShareID:     shareID,
		AccountID:   accountID,
		PeriodIndex: r.PeriodIndex,
		AssetID:     r.AssetID,
	}
}
