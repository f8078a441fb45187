package schedule

import (
	"time"

	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

// DaySchedule is everything needed to resolve the open intervals of one
// business day.
type DaySchedule struct {
	Date        string
	Weekday     time.Weekday
	Hours       []model.BusinessHours
	Overrides   []model.HourOverride
	Constraints []model.Constraint
}

// BaseHours returns the raw working-hour intervals for the day before any
// constraints are subtracted. A date override replaces the weekly pattern
// entirely; a closed override yields no intervals.
func (d DaySchedule) BaseHours() []Interval {
	var overrides []model.HourOverride
	for _, o := range d.Overrides {
		if o.Date == d.Date {
			overrides = append(overrides, o)
		}
	}
	if len(overrides) > 0 {
		var base []Interval
		for _, o := range overrides {
			if o.Closed {
				return nil
			}
			base = append(base, Interval{Start: o.StartMinute, End: o.EndMinute})
		}
		return Merge(base)
	}

	var base []Interval
	for _, h := range d.Hours {
		if h.Weekday == int(d.Weekday) {
			base = append(base, Interval{Start: h.StartMinute, End: h.EndMinute})
		}
	}
	return Merge(base)
}

// OpenIntervals resolves the day's bookable time: working hours for the
// weekday (or the date override), minus every constraint on the date.
func (d DaySchedule) OpenIntervals() []Interval {
	base := d.BaseHours()
	if len(base) == 0 {
		return nil
	}
	var blocks []Interval
	for _, c := range d.Constraints {
		if c.Date == d.Date {
			blocks = append(blocks, Interval{Start: c.StartMinute, End: c.EndMinute})
		}
	}
	return Subtract(base, blocks)
}
