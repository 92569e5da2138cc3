package handler

import (
	"net/http"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/dto"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// EventHandler handles ledger event journal HTTP requests.
type EventHandler struct {
	eventUC *usecase.EventUseCase
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(eventUC *usecase.EventUseCase) *EventHandler {
	return &EventHandler{eventUC: eventUC}
}

// List lists recent ledger events, newest first.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	events, err := h.eventUC.ListEvents(r.Context(), usecase.ListEventsInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}
