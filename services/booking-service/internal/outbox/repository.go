package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/r-menendez/slotline/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts an event inside the caller's transaction so the event is
// atomic with the state change.
func Append(ctx context.Context, tx pgx.Tx, evt Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.Type, evt.AggregateID, evt.Payload, evt.Traceparent, evt.Tracestate, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// Insert appends an event outside any caller transaction. Used where the
// event is the only write.
func (r *Repository) Insert(ctx context.Context, evt Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.Type, evt.AggregateID, evt.Payload, evt.Traceparent, evt.Tracestate, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished returns the oldest unpublished events. Publishing is
// at-least-once; consumers dedupe on event id.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.AggregateID, &evt.Payload, &evt.Traceparent, &evt.Tracestate, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events SET published_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}
