package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/libs/db"
	"github.com/r-menendez/slotline/services/booking-service/internal/admission"
	"github.com/r-menendez/slotline/services/booking-service/internal/events"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
)

// ScheduleRepository manages the schedule configuration: weekly hours,
// date overrides, constraints, services and the business profile.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// ReplaceWeeklyHours swaps the whole weekly pattern atomically.
func (r *ScheduleRepository) ReplaceWeeklyHours(ctx context.Context, businessID uuid.UUID, hours []model.BusinessHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE business_id = $1`, businessID); err != nil {
		return err
	}
	for _, h := range hours {
		_, err := tx.Exec(ctx, `
			INSERT INTO business_hours (id, business_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), businessID, h.Weekday, h.StartMinute, h.EndMinute,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ScheduleRepository) ListWeeklyHours(ctx context.Context, businessID uuid.UUID) ([]model.BusinessHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, weekday, start_minute, end_minute
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday, start_minute`,
		businessID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []model.BusinessHours
	for rows.Next() {
		var h model.BusinessHours
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.Weekday, &h.StartMinute, &h.EndMinute); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// UpsertOverride replaces any override for the date.
func (r *ScheduleRepository) UpsertOverride(ctx context.Context, o model.HourOverride) (model.HourOverride, error) {
	o.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hour_overrides (id, business_id, date, closed, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, date) DO UPDATE
		SET closed = EXCLUDED.closed,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute`,
		o.ID, o.BusinessID, o.Date, o.Closed, o.StartMinute, o.EndMinute,
	)
	return o, err
}

func (r *ScheduleRepository) AddConstraint(ctx context.Context, c model.Constraint) (model.Constraint, error) {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO business_constraints (id, business_id, date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.BusinessID, c.Date, c.StartMinute, c.EndMinute, c.Reason,
	).Scan(&c.CreatedAt)
	return c, err
}

// RemoveConstraint deletes the constraint and appends the removal event in
// one transaction so the waitlist hears about newly open time.
func (r *ScheduleRepository) RemoveConstraint(ctx context.Context, businessID, constraintID uuid.UUID) (model.Constraint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Constraint{}, err
	}
	defer tx.Rollback(ctx)

	var c model.Constraint
	err = tx.QueryRow(ctx, `
		DELETE FROM business_constraints
		WHERE id = $1 AND business_id = $2
		RETURNING id, business_id, date::text, start_minute, end_minute, COALESCE(reason, ''), created_at`,
		constraintID, businessID,
	).Scan(&c.ID, &c.BusinessID, &c.Date, &c.StartMinute, &c.EndMinute, &c.Reason, &c.CreatedAt)
	if isNoRows(err) {
		return model.Constraint{}, fmt.Errorf("constraint %s: %w", constraintID, admission.ErrNotFound)
	}
	if err != nil {
		return model.Constraint{}, err
	}

	evt, err := outbox.NewEvent(ctx, events.ConstraintRemoved, c.ID, events.ConstraintRemovedPayload{
		ConstraintID: c.ID,
		BusinessID:   c.BusinessID,
		Date:         c.Date,
		StartMinute:  c.StartMinute,
		EndMinute:    c.EndMinute,
	})
	if err != nil {
		return model.Constraint{}, err
	}
	if err := outbox.Append(ctx, tx, evt); err != nil {
		return model.Constraint{}, err
	}
	return c, tx.Commit(ctx)
}

func (r *ScheduleRepository) ListConstraints(ctx context.Context, businessID uuid.UUID, date string) ([]model.Constraint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, date::text, start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM business_constraints
		WHERE business_id = $1 AND date = $2
		ORDER BY start_minute`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []model.Constraint
	for rows.Next() {
		var c model.Constraint
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Date, &c.StartMinute, &c.EndMinute, &c.Reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

func (r *ScheduleRepository) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	svc.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO business_services (id, business_id, name, duration_minutes, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Active,
	).Scan(&svc.CreatedAt)
	return svc, err
}

func (r *ScheduleRepository) UpdateService(ctx context.Context, svc model.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE business_services
		SET name = $3, duration_minutes = $4, price_cents = $5, active = $6
		WHERE id = $1 AND business_id = $2`,
		svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %s: %w", svc.ID, admission.ErrNotFound)
	}
	return nil
}

func (r *ScheduleRepository) ListServices(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, duration_minutes, price_cents, active, created_at
		FROM business_services
		WHERE business_id = $1 AND (NOT $2 OR active)
		ORDER BY name`,
		businessID, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (r *ScheduleRepository) UpsertProfile(ctx context.Context, p model.BusinessProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_profiles (business_id, name, timezone, slot_granularity, waitlist_ttl_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			slot_granularity = EXCLUDED.slot_granularity,
			waitlist_ttl_minutes = EXCLUDED.waitlist_ttl_minutes,
			updated_at = now()`,
		p.BusinessID, p.Name, p.Timezone, p.SlotGranularity, p.WaitlistTTLMinutes,
	)
	return err
}
