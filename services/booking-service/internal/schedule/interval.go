package schedule

import (
	"fmt"
	"sort"
)

// MinutesPerDay bounds every interval; all times are minutes from local
// midnight with the end exclusive.
const MinutesPerDay = 24 * 60

// Interval is a half-open [Start, End) range of minutes within one day.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) Validate() error {
	if iv.Start < 0 || iv.End > MinutesPerDay {
		return fmt.Errorf("interval [%d, %d) outside day bounds", iv.Start, iv.End)
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("interval [%d, %d) is empty or inverted", iv.Start, iv.End)
	}
	return nil
}

func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps reports whether two half-open intervals share any minute.
// Touching endpoints ([9:00,10:00) and [10:00,11:00)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

// Merge collapses overlapping or touching intervals into a sorted,
// disjoint set. The input is not modified.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes blocks from base and returns the remaining free
// sub-intervals in chronological order. Blocks need not be sorted or
// disjoint.
func Subtract(base []Interval, blocks []Interval) []Interval {
	free := Merge(base)
	if len(free) == 0 {
		return nil
	}
	for _, block := range Merge(blocks) {
		var next []Interval
		for _, iv := range free {
			if !iv.Overlaps(block) {
				next = append(next, iv)
				continue
			}
			if iv.Start < block.Start {
				next = append(next, Interval{Start: iv.Start, End: block.Start})
			}
			if block.End < iv.End {
				next = append(next, Interval{Start: block.End, End: iv.End})
			}
		}
		free = next
		if len(free) == 0 {
			break
		}
	}
	return free
}
