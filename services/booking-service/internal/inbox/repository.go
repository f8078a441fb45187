package inbox

import (
	"context"

	"github.com/r-menendez/slotline/libs/db"
	"github.com/r-menendez/slotline/services/booking-service/internal/storage"
)

// Repository records processed event ids so redelivered messages are
// handled exactly once.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Seen reports whether an event id was already processed.
func (r *Repository) Seen(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM inbox_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed claims an event id. It returns false when the event was
// already processed.
func (r *Repository) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)`,
		eventID, eventType,
	)
	if storage.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
