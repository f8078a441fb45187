package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/events"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

// ErrIntervalHeld is returned by DayTx.InsertAppointment when the database
// overlap constraint fires. It is the backstop behind the in-transaction
// occupancy check.
var ErrIntervalHeld = errors.New("interval already held")

// IdempotencyRecord is the outcome stored under an idempotency key.
type IdempotencyRecord struct {
	Key           string
	AppointmentID uuid.UUID
	Completed     bool
}

// DayTx is the unit of work for one business day. The store serializes
// transactions per (business, date) so booking decisions never race.
type DayTx interface {
	Service(ctx context.Context, serviceID uuid.UUID) (model.Service, error)
	DaySchedule(ctx context.Context, date string) (schedule.DaySchedule, error)
	ActiveAppointments(ctx context.Context, date string) ([]model.Appointment, error)
	Appointment(ctx context.Context, id uuid.UUID) (model.Appointment, error)
	AppointmentForUpdate(ctx context.Context, id uuid.UUID) (model.Appointment, error)
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
	AppendEvent(ctx context.Context, evt outbox.Event) error
	LockIdempotencyKey(ctx context.Context, key string) (*IdempotencyRecord, error)
	FinalizeIdempotencyKey(ctx context.Context, key string, appointmentID uuid.UUID) error
}

// Store is the persistence surface the admission service needs.
type Store interface {
	InDayTransaction(ctx context.Context, businessID uuid.UUID, date string, fn func(DayTx) error) error
	ReadDay(ctx context.Context, businessID uuid.UUID, date string) (schedule.DaySchedule, []model.Appointment, error)
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, error)
	GetProfile(ctx context.Context, businessID uuid.UUID) (model.BusinessProfile, error)
	GetAppointment(ctx context.Context, businessID, id uuid.UUID) (model.Appointment, error)
	ListAppointments(ctx context.Context, businessID uuid.UUID, date string) ([]model.Appointment, error)
}

// DefaultHorizonDays bounds how far ahead a booking date may lie.
const DefaultHorizonDays = 90

type Service struct {
	store       Store
	logger      *slog.Logger
	now         func() time.Time
	horizonDays int
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now, horizonDays: DefaultHorizonDays}
}

// SetHorizonDays overrides the booking horizon. Values below one are ignored.
func (s *Service) SetHorizonDays(days int) {
	if days >= 1 {
		s.horizonDays = days
	}
}

// BookingRequest is one attempt to claim a slot.
type BookingRequest struct {
	ServiceID      uuid.UUID
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Date           string // YYYY-MM-DD
	StartMinute    int
	Notes          string
	IdempotencyKey string
}

func (r BookingRequest) validate() error {
	if r.ServiceID == uuid.Nil {
		return &ValidationError{Field: "service_id", Message: "required"}
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return &ValidationError{Field: "customer_name", Message: "required"}
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return &ValidationError{Field: "customer_email", Message: "required"}
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if r.StartMinute < 0 || r.StartMinute >= schedule.MinutesPerDay {
		return &ValidationError{Field: "start_minute", Message: "must be within the day"}
	}
	return nil
}

// Admit decides a booking attempt. The whole decision runs in one
// serialized day transaction: resolve open time, check occupancy, insert,
// append the created event. A repeated idempotency key replays the stored
// outcome instead of booking twice.
func (s *Service) Admit(ctx context.Context, bctx model.BusinessContext, req BookingRequest) (model.Appointment, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}
	if err := s.checkHorizon(bctx, req.Date); err != nil {
		return model.Appointment{}, err
	}

	var result model.Appointment
	err := s.store.InDayTransaction(ctx, bctx.BusinessID, req.Date, func(tx DayTx) error {
		if req.IdempotencyKey != "" {
			rec, err := tx.LockIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if rec != nil && rec.Completed {
				appt, err := tx.Appointment(ctx, rec.AppointmentID)
				if err != nil {
					return err
				}
				result = appt
				return nil
			}
		}

		svc, err := tx.Service(ctx, req.ServiceID)
		if err != nil {
			return err
		}
		if !svc.Active {
			return &ValidationError{Field: "service_id", Message: "service is not bookable"}
		}

		iv := schedule.Interval{Start: req.StartMinute, End: req.StartMinute + svc.DurationMinutes}
		if svc.DurationMinutes <= 0 || iv.Validate() != nil {
			return reject(ReasonInvalidDuration,
				"service duration %d does not fit at minute %d", svc.DurationMinutes, req.StartMinute)
		}

		day, err := tx.DaySchedule(ctx, req.Date)
		if err != nil {
			return err
		}
		if !containedInAny(day.BaseHours(), iv) {
			return reject(ReasonOutsideWorkingHours,
				"[%d, %d) is outside working hours on %s", iv.Start, iv.End, req.Date)
		}
		if !containedInAny(day.OpenIntervals(), iv) {
			return reject(ReasonConstraintBlocked,
				"[%d, %d) is blocked by a schedule constraint on %s", iv.Start, iv.End, req.Date)
		}

		active, err := tx.ActiveAppointments(ctx, req.Date)
		if err != nil {
			return err
		}
		occ, err := schedule.BuildOccupancy(active)
		if err != nil {
			return err
		}
		if occ.Conflicts(iv) {
			return reject(ReasonSlotAlreadyTaken,
				"[%d, %d) overlaps an existing appointment on %s", iv.Start, iv.End, req.Date)
		}

		now := s.now().UTC()
		appt := model.Appointment{
			ID:            uuid.New(),
			BusinessID:    bctx.BusinessID,
			ServiceID:     req.ServiceID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
			Date:          req.Date,
			StartMinute:   iv.Start,
			EndMinute:     iv.End,
			Status:        model.StatusPending,
			Notes:         req.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			if errors.Is(err, ErrIntervalHeld) {
				return reject(ReasonSlotAlreadyTaken,
					"[%d, %d) was claimed concurrently on %s", iv.Start, iv.End, req.Date)
			}
			return err
		}

		evt, err := outbox.NewEvent(ctx, events.AppointmentCreated, appt.ID, events.AppointmentCreatedPayload{
			AppointmentID: appt.ID,
			BusinessID:    appt.BusinessID,
			ServiceID:     appt.ServiceID,
			CustomerEmail: appt.CustomerEmail,
			Date:          appt.Date,
			StartMinute:   appt.StartMinute,
			EndMinute:     appt.EndMinute,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			if err := tx.FinalizeIdempotencyKey(ctx, req.IdempotencyKey, appt.ID); err != nil {
				return err
			}
		}
		result = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return result, nil
}

// Cancel releases an appointment's interval. Cancelling an already
// cancelled appointment is a no-op returning the current row.
func (s *Service) Cancel(ctx context.Context, bctx model.BusinessContext, id uuid.UUID) (model.Appointment, error) {
	existing, err := s.store.GetAppointment(ctx, bctx.BusinessID, id)
	if err != nil {
		return model.Appointment{}, err
	}

	var result model.Appointment
	err = s.store.InDayTransaction(ctx, bctx.BusinessID, existing.Date, func(tx DayTx) error {
		appt, err := tx.AppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == model.StatusCancelled {
			result = appt
			return nil
		}
		if !appt.Status.CanTransitionTo(model.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, model.StatusCancelled)
		}
		if err := tx.UpdateAppointmentStatus(ctx, id, model.StatusCancelled); err != nil {
			return err
		}

		evt, err := outbox.NewEvent(ctx, events.AppointmentCancelled, appt.ID, events.AppointmentCancelledPayload{
			AppointmentID: appt.ID,
			BusinessID:    appt.BusinessID,
			Date:          appt.Date,
			StartMinute:   appt.StartMinute,
			EndMinute:     appt.EndMinute,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return err
		}

		appt.Status = model.StatusCancelled
		result = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return result, nil
}

// UpdateStatus moves an appointment through the lifecycle table. A move
// into cancelled also emits the cancellation event so freed time reaches
// the waitlist.
func (s *Service) UpdateStatus(ctx context.Context, bctx model.BusinessContext, id uuid.UUID, next model.AppointmentStatus) (model.Appointment, error) {
	if !next.Valid() {
		return model.Appointment{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", next)}
	}
	if next == model.StatusCancelled {
		return s.Cancel(ctx, bctx, id)
	}

	existing, err := s.store.GetAppointment(ctx, bctx.BusinessID, id)
	if err != nil {
		return model.Appointment{}, err
	}

	var result model.Appointment
	err = s.store.InDayTransaction(ctx, bctx.BusinessID, existing.Date, func(tx DayTx) error {
		appt, err := tx.AppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == next {
			result = appt
			return nil
		}
		if !appt.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, next)
		}
		if err := tx.UpdateAppointmentStatus(ctx, id, next); err != nil {
			return err
		}

		evt, err := outbox.NewEvent(ctx, events.AppointmentStatusChanged, appt.ID, events.AppointmentStatusChangedPayload{
			AppointmentID: appt.ID,
			BusinessID:    appt.BusinessID,
			From:          string(appt.Status),
			To:            string(next),
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return err
		}

		appt.Status = next
		result = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return result, nil
}

// checkHorizon rejects dates further ahead than the booking horizon,
// measured in whole days in the business's timezone.
func (s *Service) checkHorizon(bctx model.BusinessContext, date string) error {
	day, err := time.ParseInLocation("2006-01-02", date, bctx.Location)
	if err != nil {
		return &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	now := s.now().In(bctx.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, bctx.Location)
	if day.After(today.AddDate(0, 0, s.horizonDays)) {
		return &ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("beyond the %d-day booking horizon", s.horizonDays),
		}
	}
	return nil
}

func containedInAny(intervals []schedule.Interval, iv schedule.Interval) bool {
	for _, candidate := range intervals {
		if candidate.Contains(iv) {
			return true
		}
	}
	return false
}
