package admission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

// SlotList is the bookable start minutes for one service on one day.
type SlotList struct {
	Date            string
	ServiceID       uuid.UUID
	DurationMinutes int
	Granularity     int
	Starts          []int
}

// DaySlots lists bookable starts for a service on a date. When the date is
// today in the business timezone, slots that already started are hidden.
func (s *Service) DaySlots(ctx context.Context, bctx model.BusinessContext, date string, serviceID uuid.UUID) (SlotList, error) {
	if _, err := time.ParseInLocation("2006-01-02", date, bctx.Location); err != nil {
		return SlotList{}, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}

	svc, err := s.store.GetService(ctx, bctx.BusinessID, serviceID)
	if err != nil {
		return SlotList{}, err
	}
	profile, err := s.store.GetProfile(ctx, bctx.BusinessID)
	if err != nil {
		return SlotList{}, err
	}
	granularity := profile.SlotGranularity
	if granularity <= 0 {
		granularity = 15
	}

	day, appts, err := s.store.ReadDay(ctx, bctx.BusinessID, date)
	if err != nil {
		return SlotList{}, err
	}
	occ, err := schedule.BuildOccupancy(appts)
	if err != nil {
		return SlotList{}, err
	}

	starts := schedule.Slots(day.OpenIntervals(), occ, svc.DurationMinutes, granularity)

	now := s.now().In(bctx.Location)
	if now.Format("2006-01-02") == date {
		starts = schedule.SlotsAfter(starts, now.Hour()*60+now.Minute())
	}

	return SlotList{
		Date:            date,
		ServiceID:       serviceID,
		DurationMinutes: svc.DurationMinutes,
		Granularity:     granularity,
		Starts:          starts,
	}, nil
}

// ListDay returns all appointments on a date regardless of status.
func (s *Service) ListDay(ctx context.Context, bctx model.BusinessContext, date string) ([]model.Appointment, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return s.store.ListAppointments(ctx, bctx.BusinessID, date)
}
