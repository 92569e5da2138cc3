package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	var periodIndexErr *domain.PeriodIndexError

	switch {
	case errors.Is(err, domain.ErrShareNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountShareNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPeriodNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.As(err, &periodIndexErr):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBpsOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTotalBpsExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPeriodLocked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWithdrawalRegression):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidClientID),
		errors.Is(err, domain.ErrInvalidShareID),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrInvalidAssetID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseUint64Param parses an unsigned path parameter such as a checkpoint or
// period index.
func parseUint64Param(val string) (uint64, error) {
	return strconv.ParseUint(val, 10, 64)
}
