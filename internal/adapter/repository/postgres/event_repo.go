package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

const selectEvents = `
SELECT id, client_id, share_id, aggregate_id, aggregate_type, event_type, payload, created_at, published_at, published
FROM ledger_events`

// EventRepository implements usecase.EventRepository. Events are written in
// the same transaction as the mutation they describe and drained by the
// background publisher.
type EventRepository struct {
	db querier
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: pool}
}

func newEventRepositoryWithQuerier(db querier) *EventRepository {
	return &EventRepository{db: db}
}

// Create creates a journal entry within a transaction.
func (r *EventRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.LedgerEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = txQuerier(tx).Exec(ctx, `
INSERT INTO ledger_events
  (id, client_id, share_id, aggregate_id, aggregate_type, event_type, payload, created_at, published)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID,
		event.ClientID,
		event.ShareID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		timeToPgTimestamptz(event.CreatedAt),
		event.Published,
	)

	return err
}

// GetUnpublished retrieves unpublished events, oldest first.
func (r *EventRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.LedgerEvent, error) {
	rows, err := r.db.Query(ctx, selectEvents+`
WHERE published = FALSE
ORDER BY created_at
LIMIT $1`,
		int32(limit),
	)
	if err != nil {
		return nil, err
	}

	return collectEvents(rows)
}

// MarkPublished marks an event as published.
func (r *EventRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
UPDATE ledger_events
SET published = TRUE, published_at = $2
WHERE id = $1`,
		id, timeToPgTimestamptz(publishedAt),
	)

	return err
}

// List retrieves events newest first with pagination.
func (r *EventRepository) List(ctx context.Context, limit, offset int) ([]*domain.LedgerEvent, error) {
	rows, err := r.db.Query(ctx, selectEvents+`
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`,
		int32(limit), int32(offset),
	)
	if err != nil {
		return nil, err
	}

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*domain.LedgerEvent, error) {
	defer rows.Close()

	var events []*domain.LedgerEvent
	for rows.Next() {
		var (
			event       domain.LedgerEvent
			payload     []byte
			createdAt   pgtype.Timestamptz
			publishedAt pgtype.Timestamptz
		)

		err := rows.Scan(&event.ID, &event.ClientID, &event.ShareID, &event.AggregateID,
			&event.AggregateType, &event.EventType, &payload, &createdAt, &publishedAt, &event.Published)
		if err != nil {
			return nil, err
		}

		if payload != nil {
			_ = json.Unmarshal(payload, &event.Payload)
		}

		event.CreatedAt = pgTimestamptzToTime(createdAt)
		if publishedAt.Valid {
			t := publishedAt.Time
			event.PublishedAt = &t
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
