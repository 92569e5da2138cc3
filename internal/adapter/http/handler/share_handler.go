package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// ShareService defines the behavior needed by ShareHandler.
type ShareService interface {
	GetShareStatus(ctx context.Context, clientID, shareID string) (*usecase.ShareStatus, error)
	SetAccountShare(ctx context.Context, input usecase.SetAccountShareInput) (*domain.AccountSharePeriod, error)
	RemoveAccountShare(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountSharePeriod, error)
	GetAccountShare(ctx context.Context, clientID, shareID, accountID string) (*domain.AccountShare, error)
	GetPeriod(ctx context.Context, clientID, shareID, accountID string, periodIndex uint64) (*domain.AccountSharePeriod, error)
	GetCheckpointBalance(ctx context.Context, clientID, shareID string, index uint64, assetID string) (*domain.BalanceSum, error)
}

// ShareHandler handles balance share and account share HTTP requests.
type ShareHandler struct {
	shareUC ShareService
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(shareUC ShareService) *ShareHandler {
	return &ShareHandler{shareUC: shareUC}
}

// Status returns the share's current checkpoint index and total bps.
func (h *ShareHandler) Status(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")

	status, err := h.shareUC.GetShareStatus(r.Context(), clientID, shareID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get share status", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ShareStatusFromUseCase(status))
}

// SetAccountShare sets or re-weights an account's allocation.
func (h *ShareHandler) SetAccountShare(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	var req dto.SetAccountShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	period, err := h.shareUC.SetAccountShare(r.Context(), req.ToUseCaseInput(clientID, shareID, accountID))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to set account share", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(period))
}

// RemoveAccountShare removes an account's allocation.
func (h *ShareHandler) RemoveAccountShare(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	period, err := h.shareUC.RemoveAccountShare(r.Context(), clientID, shareID, accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to remove account share", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(period))
}

// GetAccountShare returns an account's share record.
func (h *ShareHandler) GetAccountShare(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	account, err := h.shareUC.GetAccountShare(r.Context(), clientID, shareID, accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account share", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountShareFromDomain(account))
}

// GetPeriod returns one period of an account's timeline.
func (h *ShareHandler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	accountID := chi.URLParam(r, "accountID")

	index, err := parseUint64Param(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period index", err.Error())
		return
	}

	period, err := h.shareUC.GetPeriod(r.Context(), clientID, shareID, accountID, index)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get period", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(period))
}

// GetCheckpointBalance returns one asset's accumulator within a checkpoint.
func (h *ShareHandler) GetCheckpointBalance(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")
	assetID := chi.URLParam(r, "assetID")

	index, err := parseUint64Param(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid checkpoint index", err.Error())
		return
	}

	sum, err := h.shareUC.GetCheckpointBalance(r.Context(), clientID, shareID, index, assetID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get checkpoint balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceSumFromDomain(sum))
}
