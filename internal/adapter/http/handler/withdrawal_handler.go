package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// WithdrawalService defines the behavior needed by WithdrawalHandler.
type WithdrawalService interface {
	Withdraw(ctx context.Context, input usecase.WithdrawInput) (*usecase.WithdrawResult, error)
	PreviewWithdrawal(ctx context.Context, input usecase.WithdrawInput) (uint64, error)
	GetWithdrawalCheckpoint(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64, assetID string) (*domain.WithdrawalCheckpoint, error)
}

// WithdrawalHandler handles settlement HTTP requests.
type WithdrawalHandler struct {
	withdrawalUC WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalUC WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalUC: withdrawalUC}
}

// Create settles one asset of one period and advances its withdrawal
// checkpoint.
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.withdrawalUC.Withdraw(r.Context(), req.ToUseCaseInput(clientID, shareID, accountID))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to withdraw", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.WithdrawFromUseCase(result))
}

// Withdrawable previews what a withdrawal would settle without writing
// anything.
func (h *WithdrawalHandler) Withdrawable(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	periodIndex, err := parseUint64Param(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period query parameter", err.Error())
		return
	}

	assetID := r.URL.Query().Get("asset")

	amount, err := h.withdrawalUC.PreviewWithdrawal(r.Context(), usecase.WithdrawInput{
		ClientID:    clientID,
		ShareID:     shareID,
		AccountID:   accountID,
		PeriodIndex: periodIndex,
		AssetID:     assetID,
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to preview withdrawal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawableResponse{
		PeriodIndex: periodIndex,
		AssetID:     assetID,
		Amount:      strconv.FormatUint(amount, 10),
	})
}

// GetCheckpoint returns one asset's withdrawal checkpoint for a period.
func (h *WithdrawalHandler) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")
	assetID := chi.URLParam(r, "assetID")

	index, err := parseUint64Param(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period index", err.Error())
		return
	}

	withdrawal, err := h.withdrawalUC.GetWithdrawalCheckpoint(r.Context(), clientID, shareID, accountID, index, assetID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get withdrawal checkpoint", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalCheckpointFromDomain(withdrawal))
}
