package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/r-menendez/slotline/services/booking-service/internal/admission"
	"github.com/r-menendez/slotline/services/booking-service/internal/model"
)

type stubAdmissions struct {
	admitResult  model.Appointment
	admitErr     error
	cancelResult model.Appointment
	cancelErr    error
	statusErr    error
	slots        admission.SlotList
	slotsErr     error
	lastRequest  admission.BookingRequest
}

func (s *stubAdmissions) Admit(ctx context.Context, bctx model.BusinessContext, req admission.BookingRequest) (model.Appointment, error) {
	s.lastRequest = req
	return s.admitResult, s.admitErr
}

func (s *stubAdmissions) Cancel(ctx context.Context, bctx model.BusinessContext, id uuid.UUID) (model.Appointment, error) {
	return s.cancelResult, s.cancelErr
}

func (s *stubAdmissions) UpdateStatus(ctx context.Context, bctx model.BusinessContext, id uuid.UUID, next model.AppointmentStatus) (model.Appointment, error) {
	if s.statusErr != nil {
		return model.Appointment{}, s.statusErr
	}
	appt := s.cancelResult
	appt.Status = next
	return appt, nil
}

func (s *stubAdmissions) DaySlots(ctx context.Context, bctx model.BusinessContext, date string, serviceID uuid.UUID) (admission.SlotList, error) {
	return s.slots, s.slotsErr
}

func (s *stubAdmissions) ListDay(ctx context.Context, bctx model.BusinessContext, date string) ([]model.Appointment, error) {
	return nil, nil
}

type stubProfiles struct{}

func (stubProfiles) GetProfile(ctx context.Context, businessID uuid.UUID) (model.BusinessProfile, error) {
	return model.BusinessProfile{
		BusinessID: businessID, Timezone: "UTC",
		SlotGranularity: 15, WaitlistTTLMinutes: 60,
	}, nil
}

type stubWaitlist struct {
	created *model.WaitlistEntry
	deleted bool
}

func (s *stubWaitlist) Create(ctx context.Context, entry model.WaitlistEntry) (model.WaitlistEntry, error) {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	s.created = &entry
	return entry, nil
}

func (s *stubWaitlist) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.deleted, nil
}

func newHandler(adm *stubAdmissions, wl *stubWaitlist) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookingHandler(adm, stubProfiles{}, wl, logger)
}

func TestSlotsReturnsEmptyListNotError(t *testing.T) {
	businessID := uuid.New()
	adm := &stubAdmissions{slots: admission.SlotList{Date: "2026-09-07", DurationMinutes: 60}}
	h := newHandler(adm, &stubWaitlist{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/public/slots?business_id="+businessID.String()+"&service_id="+uuid.NewString()+"&date=2026-09-07", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Slots == nil || len(resp.Slots) != 0 {
		t.Fatalf("slots = %v, want empty array", resp.Slots)
	}
}

func TestSlotsMarksStartsAvailable(t *testing.T) {
	businessID := uuid.New()
	adm := &stubAdmissions{slots: admission.SlotList{
		Date: "2026-09-07", DurationMinutes: 60, Starts: []int{540, 630},
	}}
	h := newHandler(adm, &stubWaitlist{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/public/slots?business_id="+businessID.String()+"&service_id="+uuid.NewString()+"&date=2026-09-07", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 2 || resp.Slots[0].StartMinute != 540 || !resp.Slots[0].Available {
		t.Fatalf("slots = %+v, want [{540 true} {630 true}]", resp.Slots)
	}
}

func TestCreatePassesIdempotencyKey(t *testing.T) {
	adm := &stubAdmissions{admitResult: model.Appointment{
		ID: uuid.New(), ServiceID: uuid.New(), Date: "2026-09-07",
		StartMinute: 600, EndMinute: 660, Status: model.StatusPending,
	}}
	h := newHandler(adm, &stubWaitlist{})

	body := `{"business_id":"` + uuid.NewString() + `","service_id":"` + uuid.NewString() +
		`","customer_name":"Dana","customer_email":"d@example.com","date":"2026-09-07","start_minute":600}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-123")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if adm.lastRequest.IdempotencyKey != "key-123" {
		t.Errorf("idempotency key = %q, want key-123", adm.lastRequest.IdempotencyKey)
	}
}

func TestCreateMapsRejections(t *testing.T) {
	cases := []struct {
		reason admission.RejectionReason
		want   int
	}{
		{admission.ReasonSlotAlreadyTaken, http.StatusConflict},
		{admission.ReasonOutsideWorkingHours, http.StatusUnprocessableEntity},
		{admission.ReasonConstraintBlocked, http.StatusUnprocessableEntity},
		{admission.ReasonInvalidDuration, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		adm := &stubAdmissions{admitErr: &admission.Rejection{Reason: tc.reason}}
		h := newHandler(adm, &stubWaitlist{})

		body := `{"business_id":"` + uuid.NewString() + `","service_id":"` + uuid.NewString() +
			`","customer_name":"Dana","customer_email":"d@example.com","date":"2026-09-07","start_minute":600}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Create(rec, req)

		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.reason, rec.Code, tc.want)
			continue
		}
		var resp rejectionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Rejected != string(tc.reason) {
			t.Errorf("rejected = %q, want %q", resp.Rejected, tc.reason)
		}
	}
}

func TestCreateRejectsBadBusinessID(t *testing.T) {
	h := newHandler(&stubAdmissions{}, &stubWaitlist{})
	body := `{"business_id":"nope","service_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCancelMapsNotFound(t *testing.T) {
	adm := &stubAdmissions{cancelErr: admission.ErrNotFound}
	h := newHandler(adm, &stubWaitlist{})

	body := `{"business_id":"` + uuid.NewString() + `","appointment_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateStatusMapsInvalidTransition(t *testing.T) {
	adm := &stubAdmissions{statusErr: admission.ErrInvalidTransition}
	h := newHandler(adm, &stubWaitlist{})

	body := `{"business_id":"` + uuid.NewString() + `","appointment_id":"` + uuid.NewString() + `","status":"completed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestJoinWaitlistUsesProfileTTL(t *testing.T) {
	wl := &stubWaitlist{}
	h := newHandler(&stubAdmissions{}, wl)

	body := `{"business_id":"` + uuid.NewString() + `","service_id":"` + uuid.NewString() +
		`","customer_name":"Dana","customer_email":"d@example.com","date":"2026-09-07","start_minute":600,"end_minute":660}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/waitlist", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Waitlist(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if wl.created == nil {
		t.Fatal("expected waitlist entry to be created")
	}
	ttl := time.Until(wl.created.ExpiresAt)
	if ttl < 55*time.Minute || ttl > 65*time.Minute {
		t.Errorf("ttl = %v, want about 60m from profile", ttl)
	}
}

func TestJoinWaitlistRejectsInvertedWindow(t *testing.T) {
	h := newHandler(&stubAdmissions{}, &stubWaitlist{})
	body := `{"business_id":"` + uuid.NewString() + `","service_id":"` + uuid.NewString() +
		`","customer_email":"d@example.com","date":"2026-09-07","start_minute":660,"end_minute":600}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/waitlist", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Waitlist(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLeaveWaitlistNotFound(t *testing.T) {
	h := newHandler(&stubAdmissions{}, &stubWaitlist{deleted: false})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/public/waitlist?id="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.Waitlist(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMethodGuards(t *testing.T) {
	h := newHandler(&stubAdmissions{}, &stubWaitlist{})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/public/book", nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
