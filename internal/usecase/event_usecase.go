package usecase

import (
	"context"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

// EventUseCase exposes the ledger event journal.
type EventUseCase struct {
	eventRepo EventRepository
}

// NewEventUseCase creates a new EventUseCase.
func NewEventUseCase(eventRepo EventRepository) *EventUseCase {
	return &EventUseCase{
		eventRepo: eventRepo,
	}
}

// ListEventsInput represents input for listing ledger events.
type ListEventsInput struct {
	Limit  int
	Offset int
}

// ListEvents lists recent ledger events, newest first.
func (uc *EventUseCase) ListEvents(ctx context.Context, input ListEventsInput) ([]*domain.LedgerEvent, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.eventRepo.List(ctx, limit, offset)
}
