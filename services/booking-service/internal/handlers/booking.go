package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/admission"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
)

// Admissions is the booking decision surface, implemented by
// admission.Service.
type Admissions interface {
	Admit(ctx context.Context, bctx model.BusinessContext, req admission.BookingRequest) (model.Appointment, error)
	Cancel(ctx context.Context, bctx model.BusinessContext, id uuid.UUID) (model.Appointment, error)
	UpdateStatus(ctx context.Context, bctx model.BusinessContext, id uuid.UUID, next model.AppointmentStatus) (model.Appointment, error)
	DaySlots(ctx context.Context, bctx model.BusinessContext, date string, serviceID uuid.UUID) (admission.SlotList, error)
	ListDay(ctx context.Context, bctx model.BusinessContext, date string) ([]model.Appointment, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, businessID uuid.UUID) (model.BusinessProfile, error)
}

type WaitlistStore interface {
	Create(ctx context.Context, entry model.WaitlistEntry) (model.WaitlistEntry, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type BookingHandler struct {
	admissions Admissions
	store      ProfileStore
	waitlist   WaitlistStore
	logger     *slog.Logger
}

func NewBookingHandler(admissions Admissions, store ProfileStore, waitlist WaitlistStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		admissions: admissions,
		store:      store,
		waitlist:   waitlist,
		logger:     logger,
	}
}

type bookRequest struct {
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	Notes         string `json:"notes"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	EndMinute     int    `json:"end_minute"`
	Status        string `json:"status"`
}

type slotItem struct {
	StartMinute int  `json:"start_minute"`
	Available   bool `json:"available"`
}

type slotsResponse struct {
	Date            string     `json:"date"`
	ServiceID       string     `json:"service_id"`
	DurationMinutes int        `json:"duration_minutes"`
	Slots           []slotItem `json:"slots"`
}

type rejectionResponse struct {
	Rejected string `json:"rejected"`
	Detail   string `json:"detail,omitempty"`
}

func appointmentToResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID: appt.ID.String(),
		ServiceID:     appt.ServiceID.String(),
		Date:          appt.Date,
		StartMinute:   appt.StartMinute,
		EndMinute:     appt.EndMinute,
		Status:        string(appt.Status),
	}
}

// Slots lists bookable start minutes for a service on a date. A day with
// no availability is an empty list, never an error.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bctx, ok := h.businessContext(w, r, r.URL.Query().Get("business_id"))
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	list, err := h.admissions.DaySlots(r.Context(), bctx, date, serviceID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	slots := make([]slotItem, 0, len(list.Starts))
	for _, start := range list.Starts {
		slots = append(slots, slotItem{StartMinute: start, Available: true})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(slotsResponse{
		Date:            list.Date,
		ServiceID:       list.ServiceID.String(),
		DurationMinutes: list.DurationMinutes,
		Slots:           slots,
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bctx, ok := h.businessContext(w, r, req.BusinessID)
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}

	appt, err := h.admissions.Admit(r.Context(), bctx, admission.BookingRequest{
		ServiceID:      serviceID,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		Date:           strings.TrimSpace(req.Date),
		StartMinute:    req.StartMinute,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appointmentToResponse(appt))
}

type cancelRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bctx, ok := h.businessContext(w, r, req.BusinessID)
	if !ok {
		return
	}
	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		http.Error(w, "invalid appointment_id", http.StatusBadRequest)
		return
	}

	appt, err := h.admissions.Cancel(r.Context(), bctx, appointmentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(appointmentToResponse(appt))
}

type statusRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bctx, ok := h.businessContext(w, r, req.BusinessID)
	if !ok {
		return
	}
	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		http.Error(w, "invalid appointment_id", http.StatusBadRequest)
		return
	}

	appt, err := h.admissions.UpdateStatus(r.Context(), bctx, appointmentID, model.AppointmentStatus(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(appointmentToResponse(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bctx, ok := h.businessContext(w, r, r.URL.Query().Get("business_id"))
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	appts, err := h.admissions.ListDay(r.Context(), bctx, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentToResponse(appt))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

type joinWaitlistRequest struct {
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	EndMinute     int    `json:"end_minute"`
}

type waitlistResponse struct {
	EntryID     string `json:"entry_id"`
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	ExpiresAt   string `json:"expires_at"`
}

// Waitlist joins on POST and leaves on DELETE.
func (h *BookingHandler) Waitlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.joinWaitlist(w, r)
	case http.MethodDelete:
		h.leaveWaitlist(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) joinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req joinWaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bctx, ok := h.businessContext(w, r, req.BusinessID)
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		http.Error(w, "invalid service_id", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		http.Error(w, "customer_email required", http.StatusBadRequest)
		return
	}
	if req.StartMinute != 0 || req.EndMinute != 0 {
		window := schedule.Interval{Start: req.StartMinute, End: req.EndMinute}
		if window.Validate() != nil {
			http.Error(w, "invalid desired window", http.StatusBadRequest)
			return
		}
	}

	profile, err := h.store.GetProfile(r.Context(), bctx.BusinessID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ttl := time.Duration(profile.WaitlistTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	entry, err := h.waitlist.Create(r.Context(), model.WaitlistEntry{
		BusinessID:    bctx.BusinessID,
		ServiceID:     serviceID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Date:          req.Date,
		StartMinute:   req.StartMinute,
		EndMinute:     req.EndMinute,
		ExpiresAt:     time.Now().UTC().Add(ttl),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(waitlistResponse{
		EntryID:     entry.ID.String(),
		Date:        entry.Date,
		StartMinute: entry.StartMinute,
		EndMinute:   entry.EndMinute,
		ExpiresAt:   entry.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) leaveWaitlist(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	removed, err := h.waitlist.Delete(r.Context(), entryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		http.Error(w, "waitlist entry not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// businessContext parses the business id and loads its timezone. Writes
// the error response itself when the id is unusable.
func (h *BookingHandler) businessContext(w http.ResponseWriter, r *http.Request, raw string) (model.BusinessContext, bool) {
	businessID, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return model.BusinessContext{}, false
	}

	loc := time.UTC
	profile, err := h.store.GetProfile(r.Context(), businessID)
	if err == nil && profile.Timezone != "" {
		if parsed, tzErr := time.LoadLocation(profile.Timezone); tzErr == nil {
			loc = parsed
		}
	}
	return model.NewBusinessContext(businessID, loc), true
}

func (h *BookingHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := admission.AsRejection(err); ok {
		status := http.StatusUnprocessableEntity
		if rej.Reason == admission.ReasonSlotAlreadyTaken {
			status = http.StatusConflict
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(rejectionResponse{Rejected: string(rej.Reason), Detail: rej.Detail})
		return
	}

	var vErr *admission.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, admission.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, admission.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, schedule.ErrInconsistent):
		h.logger.Error("occupancy inconsistency detected", "path", r.URL.Path, "error", err)
		http.Error(w, "schedule state inconsistent", http.StatusInternalServerError)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
