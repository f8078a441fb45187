package schedule

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

func TestOpenIntervalsWeeklyPattern(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-07",
		Weekday: time.Monday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
			{Weekday: int(time.Tuesday), StartMinute: 600, EndMinute: 900},
		},
	}
	got := day.OpenIntervals()
	want := []Interval{{540, 1020}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenIntervals() = %v, want %v", got, want)
	}
}

func TestOpenIntervalsClosedDay(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-06",
		Weekday: time.Sunday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
		},
	}
	if got := day.OpenIntervals(); got != nil {
		t.Fatalf("expected no intervals on closed day, got %v", got)
	}
}

func TestOpenIntervalsOverrideReplacesPattern(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-07",
		Weekday: time.Monday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
		},
		Overrides: []model.HourOverride{
			{Date: "2026-09-07", StartMinute: 600, EndMinute: 840},
		},
	}
	got := day.OpenIntervals()
	want := []Interval{{600, 840}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenIntervals() = %v, want %v", got, want)
	}
}

func TestOpenIntervalsClosedOverride(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-07",
		Weekday: time.Monday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
		},
		Overrides: []model.HourOverride{
			{Date: "2026-09-07", Closed: true},
		},
	}
	if got := day.OpenIntervals(); got != nil {
		t.Fatalf("expected closed override to yield no intervals, got %v", got)
	}
}

func TestOpenIntervalsConstraintsSubtracted(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-07",
		Weekday: time.Monday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
		},
		Constraints: []model.Constraint{
			{ID: uuid.New(), Date: "2026-09-07", StartMinute: 720, EndMinute: 780, Reason: "lunch"},
			{ID: uuid.New(), Date: "2026-09-08", StartMinute: 540, EndMinute: 600},
		},
	}
	got := day.OpenIntervals()
	want := []Interval{{540, 720}, {780, 1020}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenIntervals() = %v, want %v", got, want)
	}
}

func TestOpenIntervalsOverlappingConstraints(t *testing.T) {
	day := DaySchedule{
		Date:    "2026-09-07",
		Weekday: time.Monday,
		Hours: []model.BusinessHours{
			{Weekday: int(time.Monday), StartMinute: 540, EndMinute: 1020},
		},
		Constraints: []model.Constraint{
			{Date: "2026-09-07", StartMinute: 700, EndMinute: 760},
			{Date: "2026-09-07", StartMinute: 740, EndMinute: 800},
		},
	}
	got := day.OpenIntervals()
	want := []Interval{{540, 700}, {800, 1020}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OpenIntervals() = %v, want %v", got, want)
	}
}
