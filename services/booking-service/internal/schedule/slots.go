package schedule

// Slots enumerates candidate start minutes for an appointment of the given
// duration. Within each free sub-interval the grid is anchored at the
// sub-interval's own start and advances by granularity; a start is kept
// only when the full [start, start+duration) fits inside the sub-interval
// and overlaps no occupied time. Results are ascending and duplicate-free.
func Slots(open []Interval, occupancy *Occupancy, duration, granularity int) []int {
	if duration <= 0 || granularity <= 0 {
		return nil
	}

	var busy []Interval
	if occupancy != nil {
		busy = occupancy.Intervals()
	}

	var slots []int
	for _, freeRange := range Subtract(open, busy) {
		for start := freeRange.Start; start+duration <= freeRange.End; start += granularity {
			if len(slots) > 0 && slots[len(slots)-1] == start {
				continue
			}
			slots = append(slots, start)
		}
	}
	return slots
}

// SlotsAfter filters slots to those starting at or after cutoff, used to
// hide past slots when listing the current day.
func SlotsAfter(slots []int, cutoff int) []int {
	var out []int
	for _, s := range slots {
		if s >= cutoff {
			out = append(out, s)
		}
	}
	return out
}
