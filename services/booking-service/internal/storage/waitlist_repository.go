package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/libs/db"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

type WaitlistRepository struct {
	pool *db.Pool
}

func NewWaitlistRepository(pool *db.Pool) *WaitlistRepository {
	return &WaitlistRepository{pool: pool}
}

func (r *WaitlistRepository) Create(ctx context.Context, entry model.WaitlistEntry) (model.WaitlistEntry, error) {
	entry.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries
			(id, business_id, service_id, customer_name, customer_email, date, start_minute, end_minute, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		entry.ID, entry.BusinessID, entry.ServiceID, entry.CustomerName, entry.CustomerEmail,
		entry.Date, entry.StartMinute, entry.EndMinute, entry.ExpiresAt,
	).Scan(&entry.CreatedAt)
	return entry, err
}

// ListActiveForDate returns unexpired entries for the date, oldest first.
// Order decides who gets matched when time frees up.
func (r *WaitlistRepository) ListActiveForDate(ctx context.Context, businessID uuid.UUID, date string) ([]model.WaitlistEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, service_id, customer_name, customer_email,
			date::text, start_minute, end_minute, created_at, expires_at
		FROM waitlist_entries
		WHERE business_id = $1 AND date = $2 AND expires_at > now()
		ORDER BY created_at`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.ServiceID, &e.CustomerName, &e.CustomerEmail,
			&e.Date, &e.StartMinute, &e.EndMinute, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry after it was matched. The bool reports whether
// the row still existed, guarding against double notification.
func (r *WaitlistRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired removes entries whose expiry passed before cutoff and
// returns how many were swept.
func (r *WaitlistRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM waitlist_entries WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
