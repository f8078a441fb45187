package schedule

import (
	"reflect"
	"testing"

	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

func TestSlotsAroundBreakAndBooking(t *testing.T) {
	// 09:00-17:00 day with a 12:00-13:00 break and a 10:00-10:30 booking,
	// 60-minute service, 15-minute granularity.
	open := Subtract(
		[]Interval{{540, 1020}},
		[]Interval{{720, 780}},
	)
	occ, err := BuildOccupancy([]model.Appointment{
		appt(600, 630, model.StatusConfirmed),
	})
	if err != nil {
		t.Fatalf("BuildOccupancy: %v", err)
	}

	got := Slots(open, occ, 60, 15)
	want := []int{540, 630, 645, 660}
	for m := 780; m <= 960; m += 15 {
		want = append(want, m)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Slots() = %v, want %v", got, want)
	}
}

func TestSlotsEmptyWhenDurationExceedsGaps(t *testing.T) {
	open := []Interval{{540, 570}, {600, 640}}
	if got := Slots(open, nil, 60, 15); got != nil {
		t.Fatalf("expected no slots, got %v", got)
	}
}

func TestSlotsFullyBookedDay(t *testing.T) {
	occ, err := BuildOccupancy([]model.Appointment{
		appt(540, 1020, model.StatusConfirmed),
	})
	if err != nil {
		t.Fatalf("BuildOccupancy: %v", err)
	}
	if got := Slots([]Interval{{540, 1020}}, occ, 30, 15); got != nil {
		t.Fatalf("expected no slots on a fully booked day, got %v", got)
	}
}

func TestSlotsExactFit(t *testing.T) {
	// A gap exactly the service duration yields exactly one slot.
	got := Slots([]Interval{{600, 660}}, nil, 60, 15)
	if !reflect.DeepEqual(got, []int{600}) {
		t.Fatalf("Slots() = %v, want [600]", got)
	}
}

func TestSlotsGridAnchoredPerFreeRange(t *testing.T) {
	// A booking ending off-grid re-anchors the grid at the freed boundary.
	occ, err := BuildOccupancy([]model.Appointment{
		appt(540, 550, model.StatusConfirmed),
	})
	if err != nil {
		t.Fatalf("BuildOccupancy: %v", err)
	}
	got := Slots([]Interval{{540, 640}}, occ, 30, 30)
	want := []int{550, 580, 610}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Slots() = %v, want %v", got, want)
	}
}

func TestSlotsInvalidParameters(t *testing.T) {
	open := []Interval{{540, 1020}}
	if got := Slots(open, nil, 0, 15); got != nil {
		t.Fatalf("zero duration: got %v", got)
	}
	if got := Slots(open, nil, 30, 0); got != nil {
		t.Fatalf("zero granularity: got %v", got)
	}
}

func TestSlotsAfter(t *testing.T) {
	got := SlotsAfter([]int{540, 600, 660, 720}, 610)
	want := []int{660, 720}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SlotsAfter() = %v, want %v", got, want)
	}
}
