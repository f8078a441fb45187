package schedule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

// ErrInconsistent means stored appointments overlap each other, which the
// database exclusion constraint should make impossible. Callers must fail
// the operation rather than guess.
var ErrInconsistent = errors.New("occupancy index inconsistent: overlapping appointments")

// Occupancy is the set of intervals held by active appointments on one
// business day, kept sorted and verified disjoint.
type Occupancy struct {
	intervals []Interval
}

// BuildOccupancy indexes the appointments that still occupy time
// (cancelled and no-show ones are skipped). It returns ErrInconsistent if
// any two remaining intervals overlap.
func BuildOccupancy(appointments []model.Appointment) (*Occupancy, error) {
	var intervals []Interval
	for _, a := range appointments {
		if !a.Status.Occupies() {
			continue
		}
		iv := Interval{Start: a.StartMinute, End: a.EndMinute}
		if err := iv.Validate(); err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		intervals = append(intervals, iv)
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1].Overlaps(intervals[i]) {
			return nil, ErrInconsistent
		}
	}
	return &Occupancy{intervals: intervals}, nil
}

// Conflicts reports whether iv overlaps any occupied interval.
func (o *Occupancy) Conflicts(iv Interval) bool {
	// Binary search for the first occupied interval ending after iv.Start.
	i := sort.Search(len(o.intervals), func(i int) bool {
		return o.intervals[i].End > iv.Start
	})
	return i < len(o.intervals) && o.intervals[i].Overlaps(iv)
}

// Intervals returns the occupied intervals in chronological order.
func (o *Occupancy) Intervals() []Interval {
	out := make([]Interval, len(o.intervals))
	copy(out, o.intervals)
	return out
}
