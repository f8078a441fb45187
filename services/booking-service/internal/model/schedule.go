package model

import (
	"time"

	"github.com/google/uuid"
)

// BusinessHours is the recurring weekly opening pattern for one weekday.
// A closed day has no row. Minutes are from local midnight, end exclusive.
type BusinessHours struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	Weekday     int // 0 = Sunday .. 6 = Saturday
	StartMinute int
	EndMinute   int
}

// HourOverride replaces the weekly pattern for a single calendar date.
// Closed overrides have no intervals.
type HourOverride struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	Date        string // YYYY-MM-DD
	Closed      bool
	StartMinute int
	EndMinute   int
}

// Constraint blocks an interval on a specific date (lunch break, personal
// errand, maintenance window).
type Constraint struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	Date        string
	StartMinute int
	EndMinute   int
	Reason      string
	CreatedAt   time.Time
}

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMinutes int
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
}

// BusinessProfile holds per-business scheduling policy.
type BusinessProfile struct {
	BusinessID         uuid.UUID
	Name               string
	Timezone           string
	SlotGranularity    int // minutes between slot starts
	WaitlistTTLMinutes int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WaitlistEntry records a customer's standing interest in a time range on
// a date. Matched or expired entries are removed.
type WaitlistEntry struct {
	ID            uuid.UUID
	BusinessID    uuid.UUID
	ServiceID     uuid.UUID
	CustomerName  string
	CustomerEmail string
	Date          string
	StartMinute   int
	EndMinute     int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}
