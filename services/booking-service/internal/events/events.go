// Package events defines the event types this service emits and consumes,
// and their JSON payloads. Event type names double as Kafka topics.
package events

import "github.com/google/uuid"

const (
	AppointmentCreated       = "booking.appointment.created.v1"
	AppointmentCancelled     = "booking.appointment.cancelled.v1"
	AppointmentStatusChanged = "booking.appointment.status_changed.v1"
	ConstraintRemoved        = "booking.constraint.removed.v1"
	WaitlistMatch            = "booking.waitlist.match.v1"
)

type AppointmentCreatedPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	BusinessID    uuid.UUID `json:"business_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	CustomerEmail string    `json:"customer_email"`
	Date          string    `json:"date"`
	StartMinute   int       `json:"start_minute"`
	EndMinute     int       `json:"end_minute"`
}

// AppointmentCancelledPayload carries the freed interval so waitlist
// matching can run without a database round trip.
type AppointmentCancelledPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	BusinessID    uuid.UUID `json:"business_id"`
	Date          string    `json:"date"`
	StartMinute   int       `json:"start_minute"`
	EndMinute     int       `json:"end_minute"`
}

type AppointmentStatusChangedPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	BusinessID    uuid.UUID `json:"business_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
}

type ConstraintRemovedPayload struct {
	ConstraintID uuid.UUID `json:"constraint_id"`
	BusinessID   uuid.UUID `json:"business_id"`
	Date         string    `json:"date"`
	StartMinute  int       `json:"start_minute"`
	EndMinute    int       `json:"end_minute"`
}

type WaitlistMatchPayload struct {
	WaitlistEntryID uuid.UUID `json:"waitlist_entry_id"`
	BusinessID      uuid.UUID `json:"business_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	CustomerEmail   string    `json:"customer_email"`
	Date            string    `json:"date"`
	StartMinute     int       `json:"start_minute"`
	EndMinute       int       `json:"end_minute"`
}
