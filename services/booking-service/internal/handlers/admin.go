package handlers

import (
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
	"github.com/r-menendez/slotline/services/booking-service/internal/storage"
)

// AdminHandler manages schedule configuration: weekly hours, date
// overrides, constraints, services and the business profile.
type AdminHandler struct {
	repo   *storage.ScheduleRepository
	logger *slog.Logger
}

func NewAdminHandler(repo *storage.ScheduleRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, logger: logger}
}

type hoursEntry struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type setHoursRequest struct {
	BusinessID string       `json:"business_id"`
	Hours      []hoursEntry `json:"hours"`
}

// Hours replaces the weekly pattern on PUT and lists it on GET.
func (h *AdminHandler) Hours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		businessID, ok := parseBusinessID(w, r.URL.Query().Get("business_id"))
		if !ok {
			return
		}
		hours, err := h.repo.ListWeeklyHours(r.Context(), businessID)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		items := make([]hoursEntry, 0, len(hours))
		for _, hr := range hours {
			items = append(items, hoursEntry{Weekday: hr.Weekday, StartMinute: hr.StartMinute, EndMinute: hr.EndMinute})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPut:
		var req setHoursRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		businessID, ok := parseBusinessID(w, req.BusinessID)
		if !ok {
			return
		}
		hours := make([]model.BusinessHours, 0, len(req.Hours))
		for _, e := range req.Hours {
			if e.Weekday < 0 || e.Weekday > 6 {
				http.Error(w, "weekday must be 0..6", http.StatusBadRequest)
				return
			}
			iv := schedule.Interval{Start: e.StartMinute, End: e.EndMinute}
			if err := iv.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			hours = append(hours, model.BusinessHours{
				BusinessID: businessID, Weekday: e.Weekday,
				StartMinute: e.StartMinute, EndMinute: e.EndMinute,
			})
		}
		if err := h.repo.ReplaceWeeklyHours(r.Context(), businessID, hours); err != nil {
			h.internalError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type overrideRequest struct {
	BusinessID  string `json:"business_id"`
	Date        string `json:"date"`
	Closed      bool   `json:"closed"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

func (h *AdminHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, ok := parseBusinessID(w, req.BusinessID)
	if !ok {
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if !req.Closed {
		iv := schedule.Interval{Start: req.StartMinute, End: req.EndMinute}
		if err := iv.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	override, err := h.repo.UpsertOverride(r.Context(), model.HourOverride{
		BusinessID: businessID, Date: req.Date, Closed: req.Closed,
		StartMinute: req.StartMinute, EndMinute: req.EndMinute,
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"override_id": override.ID.String()})
}

type constraintRequest struct {
	BusinessID  string `json:"business_id"`
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Reason      string `json:"reason"`
}

type constraintItem struct {
	ConstraintID string `json:"constraint_id"`
	Date         string `json:"date"`
	StartMinute  int    `json:"start_minute"`
	EndMinute    int    `json:"end_minute"`
	Reason       string `json:"reason,omitempty"`
}

// Constraints adds on POST, lists on GET and removes on DELETE. Removal
// emits the freed-interval event so the waitlist can react.
func (h *AdminHandler) Constraints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		businessID, ok := parseBusinessID(w, r.URL.Query().Get("business_id"))
		if !ok {
			return
		}
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if _, err := time.Parse("2006-01-02", date); err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		constraints, err := h.repo.ListConstraints(r.Context(), businessID, date)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		items := make([]constraintItem, 0, len(constraints))
		for _, c := range constraints {
			items = append(items, constraintItem{
				ConstraintID: c.ID.String(), Date: c.Date,
				StartMinute: c.StartMinute, EndMinute: c.EndMinute, Reason: c.Reason,
			})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req constraintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		businessID, ok := parseBusinessID(w, req.BusinessID)
		if !ok {
			return
		}
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		iv := schedule.Interval{Start: req.StartMinute, End: req.EndMinute}
		if err := iv.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c, err := h.repo.AddConstraint(r.Context(), model.Constraint{
			BusinessID: businessID, Date: req.Date,
			StartMinute: req.StartMinute, EndMinute: req.EndMinute,
			Reason: strings.TrimSpace(req.Reason),
		})
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, constraintItem{
			ConstraintID: c.ID.String(), Date: c.Date,
			StartMinute: c.StartMinute, EndMinute: c.EndMinute, Reason: c.Reason,
		})

	case http.MethodDelete:
		businessID, ok := parseBusinessID(w, r.URL.Query().Get("business_id"))
		if !ok {
			return
		}
		constraintID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		if _, err := h.repo.RemoveConstraint(r.Context(), businessID, constraintID); err != nil {
			if errors.Is(err, admission.ErrNotFound) {
				http.Error(w, "constraint not found", http.StatusNotFound)
				return
			}
			h.internalError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type serviceRequest struct {
	BusinessID      string `json:"business_id"`
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          *bool  `json:"active"`
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          bool   `json:"active"`
}

func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		businessID, ok := parseBusinessID(w, r.URL.Query().Get("business_id"))
		if !ok {
			return
		}
		activeOnly := r.URL.Query().Get("active") == "true"
		services, err := h.repo.ListServices(r.Context(), businessID, activeOnly)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		items := make([]serviceItem, 0, len(services))
		for _, svc := range services {
			items = append(items, serviceItem{
				ServiceID: svc.ID.String(), Name: svc.Name,
				DurationMinutes: svc.DurationMinutes, PriceCents: svc.PriceCents, Active: svc.Active,
			})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		req, businessID, ok := h.decodeService(w, r)
		if !ok {
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		svc, err := h.repo.CreateService(r.Context(), model.Service{
			BusinessID: businessID, Name: strings.TrimSpace(req.Name),
			DurationMinutes: req.DurationMinutes, PriceCents: req.PriceCents, Active: active,
		})
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, serviceItem{
			ServiceID: svc.ID.String(), Name: svc.Name,
			DurationMinutes: svc.DurationMinutes, PriceCents: svc.PriceCents, Active: svc.Active,
		})

	case http.MethodPut:
		req, businessID, ok := h.decodeService(w, r)
		if !ok {
			return
		}
		serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
		if err != nil {
			http.Error(w, "invalid service_id", http.StatusBadRequest)
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		err = h.repo.UpdateService(r.Context(), model.Service{
			ID: serviceID, BusinessID: businessID, Name: strings.TrimSpace(req.Name),
			DurationMinutes: req.DurationMinutes, PriceCents: req.PriceCents, Active: active,
		})
		if errors.Is(err, admission.ErrNotFound) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) decodeService(w http.ResponseWriter, r *http.Request) (serviceRequest, uuid.UUID, bool) {
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return serviceRequest{}, uuid.Nil, false
	}
	businessID, ok := parseBusinessID(w, req.BusinessID)
	if !ok {
		return serviceRequest{}, uuid.Nil, false
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return serviceRequest{}, uuid.Nil, false
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > schedule.MinutesPerDay {
		http.Error(w, "duration_minutes must be positive and within a day", http.StatusBadRequest)
		return serviceRequest{}, uuid.Nil, false
	}
	return req, businessID, true
}

type profileRequest struct {
	BusinessID         string `json:"business_id"`
	Name               string `json:"name"`
	Timezone           string `json:"timezone"`
	SlotGranularity    int    `json:"slot_granularity"`
	WaitlistTTLMinutes int    `json:"waitlist_ttl_minutes"`
}

func (h *AdminHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID, ok := parseBusinessID(w, req.BusinessID)
	if !ok {
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, "unknown timezone", http.StatusBadRequest)
			return
		}
	}
	if req.SlotGranularity < 0 || req.SlotGranularity > schedule.MinutesPerDay {
		http.Error(w, "slot_granularity out of range", http.StatusBadRequest)
		return
	}

	err := h.repo.UpsertProfile(r.Context(), model.BusinessProfile{
		BusinessID: businessID, Name: strings.TrimSpace(req.Name),
		Timezone: req.Timezone, SlotGranularity: req.SlotGranularity,
		WaitlistTTLMinutes: req.WaitlistTTLMinutes,
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("admin request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseBusinessID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	businessID, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid business_id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return businessID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
