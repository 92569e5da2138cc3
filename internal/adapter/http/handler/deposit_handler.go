package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// DepositService defines the behavior needed by DepositHandler.
type DepositService interface {
	RecordDeposit(ctx context.Context, input usecase.RecordDepositInput) (*usecase.RecordDepositResult, error)
}

// DepositHandler handles deposit HTTP requests.
type DepositHandler struct {
	depositUC DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositUC DepositService) *DepositHandler {
	return &DepositHandler{depositUC: depositUC}
}

// Create records an incoming balance against the share's current checkpoint.
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	shareID := chi.URLParam(r, "shareID")

	var req dto.RecordDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(clientID, shareID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	result, err := h.depositUC.RecordDeposit(r.Context(), input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record deposit", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.DepositFromUseCase(result))
}
