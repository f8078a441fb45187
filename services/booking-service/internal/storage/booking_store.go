package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/r-menendez/slotline/libs/db"
	"github.com/r-menendez/slotline/services/booking-service/internal/admission"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

// Store is the Postgres persistence layer. It implements admission.Store.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

const appointmentColumns = `
	id, business_id, service_id, customer_name, customer_email, customer_phone,
	date::text, start_minute, end_minute, status, COALESCE(notes, ''), created_at, updated_at`

// InDayTransaction runs fn in a transaction holding an advisory lock on
// (business, date). All booking decisions for one day are serialized
// behind this lock; the exclusion constraint on appointments is the
// backstop if anything bypasses it.
func (s *Store) InDayTransaction(ctx context.Context, businessID uuid.UUID, date string, fn func(admission.DayTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin day transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := businessID.String() + ":" + date
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("acquire day lock: %w", err)
	}

	if err := fn(&dayTx{tx: tx, businessID: businessID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ReadDay(ctx context.Context, businessID uuid.UUID, date string) (schedule.DaySchedule, []model.Appointment, error) {
	day, err := loadDaySchedule(ctx, s.pool, businessID, date)
	if err != nil {
		return schedule.DaySchedule{}, nil, err
	}
	appts, err := activeAppointments(ctx, s.pool, businessID, date)
	if err != nil {
		return schedule.DaySchedule{}, nil, err
	}
	return day, appts, nil
}

func (s *Store) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, error) {
	return getService(ctx, s.pool, businessID, serviceID)
}

func (s *Store) GetProfile(ctx context.Context, businessID uuid.UUID) (model.BusinessProfile, error) {
	var p model.BusinessProfile
	err := s.pool.QueryRow(ctx, `
		SELECT business_id, name, timezone, slot_granularity, waitlist_ttl_minutes, created_at, updated_at
		FROM business_profiles
		WHERE business_id = $1`,
		businessID,
	).Scan(&p.BusinessID, &p.Name, &p.Timezone, &p.SlotGranularity, &p.WaitlistTTLMinutes, &p.CreatedAt, &p.UpdatedAt)
	if isNoRows(err) {
		return model.BusinessProfile{}, fmt.Errorf("business %s: %w", businessID, admission.ErrNotFound)
	}
	return p, err
}

func (s *Store) GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2`,
		id, businessID,
	)
	appt, err := scanAppointment(row)
	if isNoRows(err) {
		return model.Appointment{}, admission.ErrNotFound
	}
	return appt, err
}

func (s *Store) ListAppointments(ctx context.Context, businessID uuid.UUID, date string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND date = $2
		ORDER BY start_minute`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// dayTx implements admission.DayTx over a single pgx transaction pinned to
// one business.
type dayTx struct {
	tx         pgx.Tx
	businessID uuid.UUID
}

func (t *dayTx) Service(ctx context.Context, serviceID uuid.UUID) (model.Service, error) {
	return getService(ctx, t.tx, t.businessID, serviceID)
}

func (t *dayTx) DaySchedule(ctx context.Context, date string) (schedule.DaySchedule, error) {
	return loadDaySchedule(ctx, t.tx, t.businessID, date)
}

func (t *dayTx) ActiveAppointments(ctx context.Context, date string) ([]model.Appointment, error) {
	return activeAppointments(ctx, t.tx, t.businessID, date)
}

func (t *dayTx) Appointment(ctx context.Context, id uuid.UUID) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2`,
		id, t.businessID,
	)
	appt, err := scanAppointment(row)
	if isNoRows(err) {
		return model.Appointment{}, admission.ErrNotFound
	}
	return appt, err
}

func (t *dayTx) AppointmentForUpdate(ctx context.Context, id uuid.UUID) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE`,
		id, t.businessID,
	)
	appt, err := scanAppointment(row)
	if isNoRows(err) {
		return model.Appointment{}, admission.ErrNotFound
	}
	return appt, err
}

func (t *dayTx) InsertAppointment(ctx context.Context, appt model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, business_id, service_id, customer_name, customer_email, customer_phone,
			 date, start_minute, end_minute, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		appt.ID, appt.BusinessID, appt.ServiceID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.Date, appt.StartMinute, appt.EndMinute, string(appt.Status), appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	)
	if IsExclusionViolation(err) {
		return admission.ErrIntervalHeld
	}
	return err
}

func (t *dayTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND business_id = $2`,
		id, t.businessID, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return admission.ErrNotFound
	}
	return nil
}

func (t *dayTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return outbox.Append(ctx, t.tx, evt)
}

func (t *dayTx) LockIdempotencyKey(ctx context.Context, key string) (*admission.IdempotencyRecord, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, key)
	if err == nil {
		return rec, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING`,
		t.businessID, key,
	)
	if err != nil {
		return nil, err
	}
	// Re-select to hold the row lock for the rest of the transaction.
	return t.selectIdempotencyForUpdate(ctx, key)
}

func (t *dayTx) FinalizeIdempotencyKey(ctx context.Context, key string, appointmentID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3, completed = true, updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2`,
		t.businessID, key, appointmentID,
	)
	return err
}

func (t *dayTx) selectIdempotencyForUpdate(ctx context.Context, key string) (*admission.IdempotencyRecord, error) {
	var rec admission.IdempotencyRecord
	var appointmentID *uuid.UUID
	err := t.tx.QueryRow(ctx, `
		SELECT idempotency_key, appointment_id, completed
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE`,
		t.businessID, key,
	).Scan(&rec.Key, &appointmentID, &rec.Completed)
	if err != nil {
		return nil, err
	}
	if appointmentID != nil {
		rec.AppointmentID = *appointmentID
	}
	return &rec, nil
}

// querier lets the same loaders serve the pool and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getService(ctx context.Context, q querier, businessID, serviceID uuid.UUID) (model.Service, error) {
	var svc model.Service
	err := q.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, price_cents, active, created_at
		FROM business_services
		WHERE id = $1 AND business_id = $2`,
		serviceID, businessID,
	).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.Active, &svc.CreatedAt)
	if isNoRows(err) {
		return model.Service{}, fmt.Errorf("service %s: %w", serviceID, admission.ErrNotFound)
	}
	return svc, err
}

func loadDaySchedule(ctx context.Context, q querier, businessID uuid.UUID, date string) (schedule.DaySchedule, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return schedule.DaySchedule{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	day := schedule.DaySchedule{Date: date, Weekday: parsed.Weekday()}

	rows, err := q.Query(ctx, `
		SELECT id, business_id, weekday, start_minute, end_minute
		FROM business_hours
		WHERE business_id = $1`,
		businessID,
	)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	for rows.Next() {
		var h model.BusinessHours
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.Weekday, &h.StartMinute, &h.EndMinute); err != nil {
			rows.Close()
			return schedule.DaySchedule{}, err
		}
		day.Hours = append(day.Hours, h)
	}
	rows.Close()
	if rows.Err() != nil {
		return schedule.DaySchedule{}, rows.Err()
	}

	rows, err = q.Query(ctx, `
		SELECT id, business_id, date::text, closed, start_minute, end_minute
		FROM business_hour_overrides
		WHERE business_id = $1 AND date = $2`,
		businessID, date,
	)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	for rows.Next() {
		var o model.HourOverride
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.Date, &o.Closed, &o.StartMinute, &o.EndMinute); err != nil {
			rows.Close()
			return schedule.DaySchedule{}, err
		}
		day.Overrides = append(day.Overrides, o)
	}
	rows.Close()
	if rows.Err() != nil {
		return schedule.DaySchedule{}, rows.Err()
	}

	rows, err = q.Query(ctx, `
		SELECT id, business_id, date::text, start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM business_constraints
		WHERE business_id = $1 AND date = $2`,
		businessID, date,
	)
	if err != nil {
		return schedule.DaySchedule{}, err
	}
	for rows.Next() {
		var c model.Constraint
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Date, &c.StartMinute, &c.EndMinute, &c.Reason, &c.CreatedAt); err != nil {
			rows.Close()
			return schedule.DaySchedule{}, err
		}
		day.Constraints = append(day.Constraints, c)
	}
	rows.Close()
	return day, rows.Err()
}

func activeAppointments(ctx context.Context, q querier, businessID uuid.UUID, date string) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND date = $2 AND status IN ('pending', 'confirmed', 'completed')
		ORDER BY start_minute`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.ServiceID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.Date,
		&appt.StartMinute,
		&appt.EndMinute,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.AppointmentStatus(status)
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}
