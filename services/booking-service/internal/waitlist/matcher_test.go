package waitlist

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/events"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

type fakeSources struct {
	entries      []model.WaitlistEntry
	services     map[uuid.UUID]model.Service
	hours        []model.BusinessHours
	constraints  []model.Constraint
	appointments []model.Appointment
	sunk         []outbox.Event
}

func (f *fakeSources) ReadDay(ctx context.Context, businessID uuid.UUID, date string) (schedule.DaySchedule, []model.Appointment, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return schedule.DaySchedule{}, nil, err
	}
	return schedule.DaySchedule{
		Date:        date,
		Weekday:     day.Weekday(),
		Hours:       f.hours,
		Constraints: f.constraints,
	}, f.appointments, nil
}

func (f *fakeSources) ListActiveForDate(ctx context.Context, businessID uuid.UUID, date string) ([]model.WaitlistEntry, error) {
	var out []model.WaitlistEntry
	for _, e := range f.entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSources) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (model.Service, error) {
	svc, ok := f.services[serviceID]
	if !ok {
		return model.Service{}, context.Canceled
	}
	return svc, nil
}

func (f *fakeSources) Insert(ctx context.Context, evt outbox.Event) error {
	f.sunk = append(f.sunk, evt)
	return nil
}

func newMatcherFixture() (*Matcher, *fakeSources, uuid.UUID) {
	f := &fakeSources{services: make(map[uuid.UUID]model.Service)}
	for wd := 0; wd < 7; wd++ {
		f.hours = append(f.hours, model.BusinessHours{Weekday: wd, StartMinute: 0, EndMinute: 1440})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMatcher(f, f, f, f, logger), f, uuid.New()
}

func (f *fakeSources) addService(duration int) uuid.UUID {
	id := uuid.New()
	f.services[id] = model.Service{ID: id, DurationMinutes: duration, Active: true}
	return id
}

func (f *fakeSources) addEntry(serviceID uuid.UUID, date string, start, end int, createdAt time.Time) uuid.UUID {
	id := uuid.New()
	f.entries = append(f.entries, model.WaitlistEntry{
		ID: id, ServiceID: serviceID, Date: date,
		StartMinute: start, EndMinute: end,
		CustomerEmail: "w@example.com",
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(24 * time.Hour),
	})
	return id
}

func TestHandleFreedIntervalMatchesOverlappingWindow(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	serviceID := f.addService(30)

	// Desired 10:00-10:45, freed 10:00-10:30: intersects and a 30-minute
	// service fits the freed time.
	entryID := f.addEntry(serviceID, "2026-09-07", 600, 645, time.Now())

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 600, End: 630})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if f.sunk[0].Type != events.WaitlistMatch {
		t.Fatalf("event type = %s, want %s", f.sunk[0].Type, events.WaitlistMatch)
	}
	var payload events.WaitlistMatchPayload
	if err := json.Unmarshal(f.sunk[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.WaitlistEntryID != entryID {
		t.Errorf("payload entry = %s, want %s", payload.WaitlistEntryID, entryID)
	}
}

func TestHandleFreedIntervalSkipsNonFitting(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	longService := f.addService(60)
	disjointService := f.addService(15)

	f.addEntry(longService, "2026-09-07", 600, 660, time.Now())      // duration exceeds freed time
	f.addEntry(disjointService, "2026-09-07", 900, 960, time.Now())  // window does not intersect
	f.addEntry(disjointService, "2026-09-08", 600, 660, time.Now())  // wrong date

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 600, End: 630})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 0 {
		t.Fatalf("matched = %d, want 0", matched)
	}
}

func TestHandleFreedIntervalOrdersOldestFirst(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	serviceID := f.addService(15)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	first := f.addEntry(serviceID, "2026-09-07", 600, 660, base)
	second := f.addEntry(serviceID, "2026-09-07", 610, 640, base.Add(time.Hour))

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 600, End: 660})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 2 {
		t.Fatalf("matched = %d, want 2", matched)
	}

	var got []uuid.UUID
	for _, evt := range f.sunk {
		var payload events.WaitlistMatchPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		got = append(got, payload.WaitlistEntryID)
	}
	if got[0] != first || got[1] != second {
		t.Fatalf("order = %v, want [%s %s]", got, first, second)
	}
}

func TestHandleFreedIntervalClipsRebookedTime(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	shortService := f.addService(30)
	longService := f.addService(45)

	// 10:00-10:30 was re-booked before the cancellation event arrived, so
	// only 10:30-11:00 of the freed hour is still available.
	f.appointments = append(f.appointments, model.Appointment{
		ID: uuid.New(), BusinessID: businessID,
		Date: "2026-09-07", StartMinute: 600, EndMinute: 630,
		Status: model.StatusConfirmed,
	})
	f.addEntry(shortService, "2026-09-07", 600, 660, time.Now())
	f.addEntry(longService, "2026-09-07", 600, 660, time.Now())

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 600, End: 660})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched = %d, want 1 (45-minute service no longer fits)", matched)
	}
	var payload events.WaitlistMatchPayload
	if err := json.Unmarshal(f.sunk[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.StartMinute != 630 || payload.EndMinute != 660 {
		t.Errorf("proposed [%d, %d), want [630, 660)", payload.StartMinute, payload.EndMinute)
	}
}

func TestHandleFreedIntervalSkipsFullyRebookedTime(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	serviceID := f.addService(15)
	f.appointments = append(f.appointments, model.Appointment{
		ID: uuid.New(), BusinessID: businessID,
		Date: "2026-09-07", StartMinute: 600, EndMinute: 660,
		Status: model.StatusPending,
	})
	f.addEntry(serviceID, "2026-09-07", 600, 660, time.Now())

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 600, End: 660})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 0 {
		t.Fatalf("matched = %d, want 0 for fully re-booked time", matched)
	}
}

func TestHandleFreedIntervalNoWindowPreference(t *testing.T) {
	m, f, businessID := newMatcherFixture()
	serviceID := f.addService(15)
	f.addEntry(serviceID, "2026-09-07", 0, 0, time.Now())

	matched, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 900, End: 930})
	if err != nil {
		t.Fatalf("HandleFreedInterval: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched = %d, want 1 for entry without a window", matched)
	}
}

func TestHandleFreedIntervalRejectsInvalidInterval(t *testing.T) {
	m, _, businessID := newMatcherFixture()
	if _, err := m.HandleFreedInterval(context.Background(), businessID, "2026-09-07", schedule.Interval{Start: 630, End: 600}); err == nil {
		t.Fatal("expected error for inverted freed interval")
	}
}
