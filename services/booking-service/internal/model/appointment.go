package model

import (
	"time"

	"github.com/google/uuid"
)

// BusinessContext identifies the business an operation acts on. Every
// scheduling operation receives one explicitly; nothing is read from
// ambient state.
type BusinessContext struct {
	BusinessID uuid.UUID
	Location   *time.Location
}

func NewBusinessContext(businessID uuid.UUID, loc *time.Location) BusinessContext {
	if loc == nil {
		loc = time.UTC
	}
	return BusinessContext{BusinessID: businessID, Location: loc}
}

// Appointment is a booked interval on a business day. Start and end are
// minutes from local midnight, end exclusive.
type Appointment struct {
	ID            uuid.UUID
	BusinessID    uuid.UUID
	ServiceID     uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Date          string // YYYY-MM-DD in the business timezone
	StartMinute   int
	EndMinute     int
	Status        AppointmentStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Appointment) Duration() int {
	return a.EndMinute - a.StartMinute
}
