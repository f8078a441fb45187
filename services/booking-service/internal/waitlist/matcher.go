package waitlist

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/events"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

// EntrySource lists standing waitlist entries.
type EntrySource interface {
	ListActiveForDate(ctx context.Context, businessID uuid.UUID, date string) ([]model.WaitlistEntry, error)
}

// DaySource reads the current schedule and occupancy for a date.
type DaySource interface {
	ReadDay(ctx context.Context, businessID uuid.UUID, date string) (schedule.DaySchedule, []model.Appointment, error)
}

// ServiceSource resolves the duration of a waitlisted service.
type ServiceSource interface {
	GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, error)
}

// EventSink receives match events for publication.
type EventSink interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

// Matcher proposes waitlist candidates when an interval frees up. It never
// books on anyone's behalf; a match event is an invitation, and the entry
// stays on the list until the customer books or it expires.
type Matcher struct {
	entries  EntrySource
	days     DaySource
	services ServiceSource
	sink     EventSink
	logger   *slog.Logger
}

func NewMatcher(entries EntrySource, days DaySource, services ServiceSource, sink EventSink, logger *slog.Logger) *Matcher {
	return &Matcher{entries: entries, days: days, services: services, sink: sink, logger: logger}
}

// HandleFreedInterval matches entries against a freed interval on a date.
// The freed time is clipped to what is still open and unoccupied when the
// event arrives, so stale cancellations cannot propose already-taken time.
// An entry matches when its desired window intersects a clipped range and
// its service duration fits inside it. Matches go out oldest first.
func (m *Matcher) HandleFreedInterval(ctx context.Context, businessID uuid.UUID, date string, freed schedule.Interval) (int, error) {
	if err := freed.Validate(); err != nil {
		return 0, err
	}

	clipped, err := m.clipToAvailable(ctx, businessID, date, freed)
	if err != nil {
		return 0, err
	}
	if len(clipped) == 0 {
		return 0, nil
	}

	entries, err := m.entries.ListActiveForDate(ctx, businessID, date)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, entry := range entries {
		svc, err := m.services.GetService(ctx, businessID, entry.ServiceID)
		if err != nil {
			m.logger.Warn("waitlist entry references unknown service",
				"entry_id", entry.ID,
				"service_id", entry.ServiceID,
			)
			continue
		}
		open, ok := firstMatch(entry, svc, clipped)
		if !ok {
			continue
		}

		evt, err := outbox.NewEvent(ctx, events.WaitlistMatch, entry.ID, events.WaitlistMatchPayload{
			WaitlistEntryID: entry.ID,
			BusinessID:      entry.BusinessID,
			ServiceID:       entry.ServiceID,
			CustomerEmail:   entry.CustomerEmail,
			Date:            date,
			StartMinute:     open.Start,
			EndMinute:       open.End,
		})
		if err != nil {
			return matched, err
		}
		if err := m.sink.Insert(ctx, evt); err != nil {
			return matched, err
		}
		matched++
	}
	return matched, nil
}

// clipToAvailable intersects the freed interval with the date's current
// free time: open intervals minus active occupancy.
func (m *Matcher) clipToAvailable(ctx context.Context, businessID uuid.UUID, date string, freed schedule.Interval) ([]schedule.Interval, error) {
	day, appts, err := m.days.ReadDay(ctx, businessID, date)
	if err != nil {
		return nil, err
	}
	occ, err := schedule.BuildOccupancy(appts)
	if err != nil {
		return nil, err
	}

	var clipped []schedule.Interval
	for _, free := range schedule.Subtract(day.OpenIntervals(), occ.Intervals()) {
		if !free.Overlaps(freed) {
			continue
		}
		clipped = append(clipped, schedule.Interval{
			Start: max(free.Start, freed.Start),
			End:   min(free.End, freed.End),
		})
	}
	return clipped, nil
}

func firstMatch(entry model.WaitlistEntry, svc model.Service, clipped []schedule.Interval) (schedule.Interval, bool) {
	for _, open := range clipped {
		if matches(entry, svc, open) {
			return open, true
		}
	}
	return schedule.Interval{}, false
}

func matches(entry model.WaitlistEntry, svc model.Service, open schedule.Interval) bool {
	if svc.DurationMinutes <= 0 || svc.DurationMinutes > open.Duration() {
		return false
	}
	desired := schedule.Interval{Start: entry.StartMinute, End: entry.EndMinute}
	if desired.Validate() != nil {
		// No window preference: any open time on the date matches.
		return true
	}
	return desired.Overlaps(open)
}
