package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotmeet/libs/auth"
	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/schedule"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/storage"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSchedule struct {
	now      time.Time
	rules    []model.Availability
	replaced []availability.RuleInput
	month    schedule.MonthResult
	err      error

	gotYear  int
	gotMonth time.Month
}

func (f *fakeSchedule) Now() time.Time { return f.now }

func (f *fakeSchedule) Rules(context.Context, string) ([]model.Availability, error) {
	return f.rules, f.err
}

func (f *fakeSchedule) ReplaceRules(_ context.Context, _ string, in []availability.RuleInput) ([]availability.Rule, error) {
	rules, errs := availability.PrepareRules(in)
	if len(errs) > 0 {
		return nil, &schedule.ValidationError{Errors: errs}
	}
	f.replaced = in
	return rules, f.err
}

func (f *fakeSchedule) MonthAvailability(_ context.Context, _ string, year int, month time.Month) (schedule.MonthResult, error) {
	f.gotYear, f.gotMonth = year, month
	return f.month, f.err
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: userID, Username: "bob"}))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json body %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestMonth_Defaults(t *testing.T) {
	fs := &fakeSchedule{
		now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		month: schedule.MonthResult{
			User: model.User{Name: "Alice", Username: "alice"},
			Days: []availability.DayAvailability{{Date: "2024-03-01", TimeSlots: []availability.TimeOfDay{}}},
		},
	}
	h := NewAvailabilityHandler(fs, testLogger)

	rr := httptest.NewRecorder()
	h.Month(rr, httptest.NewRequest(http.MethodGet, "/api/v1/availabilities/month?username=alice", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if fs.gotYear != 2024 || fs.gotMonth != time.March {
		t.Fatalf("expected current year/month defaults, got %d/%s", fs.gotYear, fs.gotMonth)
	}
	body := rr.Body.String()
	for _, want := range []string{`"user":{"name":"Alice","username":"alice"}`, `"available_time_slots":[{"date":"2024-03-01","is_available":false,"time_slots":[]}]`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestMonth_Validation(t *testing.T) {
	fs := &fakeSchedule{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	h := NewAvailabilityHandler(fs, testLogger)

	rr := httptest.NewRecorder()
	h.Month(rr, httptest.NewRequest(http.MethodGet, "/api/v1/availabilities/month?year=1999&month=13", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	for _, field := range []string{"username", "year", "month"} {
		if len(env.Errors[field]) != 1 {
			t.Fatalf("expected error on %s, got %v", field, env.Errors)
		}
	}
	if env.Errors["year"][0] != "The year must be between 2000 and 2034." {
		t.Fatalf("unexpected year message %q", env.Errors["year"][0])
	}
}

func TestMonth_UserNotFound(t *testing.T) {
	fs := &fakeSchedule{now: time.Now(), err: schedule.ErrUserNotFound}
	rr := httptest.NewRecorder()
	NewAvailabilityHandler(fs, testLogger).Month(rr, httptest.NewRequest(http.MethodGet, "/?username=ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Success || env.Message != "User not found" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestMonth_InternalErrorHidesCause(t *testing.T) {
	fs := &fakeSchedule{now: time.Now(), err: errors.New("pq: connection refused")}
	rr := httptest.NewRecorder()
	NewAvailabilityHandler(fs, testLogger).Month(rr, httptest.NewRequest(http.MethodGet, "/?username=alice", nil))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("expected opaque 500, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReplace_ValidationErrors(t *testing.T) {
	fs := &fakeSchedule{}
	h := NewAvailabilityHandler(fs, testLogger)

	body := `{"availabilities":[
		{"day_of_week":"monday","start_time":"09:00","end_time":"10:30"},
		{"day_of_week":"monday","start_time":"10:00","end_time":"11:00"},
		{"day_of_week":"funday","start_time":"9am","end_time":"10:00"}
	]}`
	rr := httptest.NewRecorder()
	h.Replace(rr, authed(httptest.NewRequest(http.MethodPost, "/api/v1/availabilities", strings.NewReader(body)), "u-1"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Kind != "validation" || len(env.Errors["availabilities.2.day_of_week"]) != 1 || len(env.Errors["availabilities.2.start_time"]) != 1 {
		t.Fatalf("unexpected errors %v", env.Errors)
	}
	if fs.replaced != nil {
		t.Fatal("expected nothing replaced")
	}
}

func TestReplace_Success(t *testing.T) {
	fs := &fakeSchedule{}
	h := NewAvailabilityHandler(fs, testLogger)

	body := `{"availabilities":[{"day_of_week":"tuesday","start_time":"9:00","end_time":"10:00"},{"day_of_week":"monday","start_time":"09:00","end_time":"10:00","is_available":false}]}`
	rr := httptest.NewRecorder()
	h.Replace(rr, authed(httptest.NewRequest(http.MethodPost, "/api/v1/availabilities", strings.NewReader(body)), "u-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := `"data":[{"day_of_week":"monday","start_time":"09:00:00","end_time":"10:00:00","is_available":false},{"day_of_week":"tuesday","start_time":"09:00:00","end_time":"10:00:00","is_available":true}]`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestReplace_RequiresIdentityAndJSON(t *testing.T) {
	h := NewAvailabilityHandler(&fakeSchedule{}, testLogger)

	rr := httptest.NewRecorder()
	h.Replace(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.Replace(rr, authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), "u-1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

type fakeBookings struct {
	created booking.CreateInput
	filter  storage.ListFilter
	result  model.Booking
	err     error
}

func (f *fakeBookings) Create(_ context.Context, in booking.CreateInput) (model.Booking, error) {
	f.created = in
	return f.result, f.err
}

func (f *fakeBookings) List(_ context.Context, _ string, lf storage.ListFilter) ([]model.Booking, error) {
	f.filter = lf
	return []model.Booking{f.result}, f.err
}

func (f *fakeBookings) Cancel(context.Context, string, string) (model.Booking, error) {
	return f.result, f.err
}

func (f *fakeBookings) SetMeetingLink(context.Context, string, string, string) (model.Booking, error) {
	return f.result, f.err
}

func sampleBooking() model.Booking {
	at := time.Date(2024, 1, 1, 3, 30, 0, 0, time.UTC)
	return model.Booking{
		ID:          "7f1c1c7e-8f51-4c5e-9a55-6f0f4f3b6d10",
		HostUserID:  "u-alice",
		GuestUserID: "u-bob",
		BookingTime: at,
		CreatedAt:   at.Add(-time.Hour),
		Host:        &model.Profile{ID: "u-alice", Name: "Alice", Username: "alice"},
		Guest:       &model.Profile{ID: "u-bob", Name: "Bob", Username: "bob"},
	}
}

func TestCreateBooking(t *testing.T) {
	fb := &fakeBookings{result: sampleBooking()}
	h := NewBookingHandler(fb, testLogger)

	rr := httptest.NewRecorder()
	body := `{"username":"alice","booking_time":"2024-01-01T03:30:00Z","notes":"hi"}`
	h.Create(rr, authed(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)), "u-bob"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fb.created.GuestID != "u-bob" || fb.created.Username != "alice" || fb.created.Notes != "hi" {
		t.Fatalf("unexpected service input %+v", fb.created)
	}
	for _, want := range []string{`"end_time":"2024-01-01T04:00:00Z"`, `"status":"booked"`, `"host":{"id":"u-alice","name":"Alice","username":"alice"}`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("expected %s in %s", want, rr.Body.String())
		}
	}
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{&booking.ValidationError{Errors: []booking.FieldError{{Field: "username", Message: "x"}}}, http.StatusUnprocessableEntity, "validation"},
		{booking.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
		{booking.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		fb := &fakeBookings{err: tc.err}
		rr := httptest.NewRecorder()
		NewBookingHandler(fb, testLogger).Create(rr, authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), "u-bob"))
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if env := decodeEnvelope(t, rr); env.Kind != tc.kind {
			t.Fatalf("%v: expected kind %q, got %q", tc.err, tc.kind, env.Kind)
		}
		if tc.status == http.StatusServiceUnavailable && rr.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After on lock timeout")
		}
	}
}

func TestListBookings_Range(t *testing.T) {
	fb := &fakeBookings{result: sampleBooking()}
	rr := httptest.NewRecorder()
	NewBookingHandler(fb, testLogger).List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/bookings?start_date=2024-01-01", nil), "u-bob"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !fb.filter.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || !fb.filter.To.IsZero() {
		t.Fatalf("unexpected filter %+v", fb.filter)
	}

	rr = httptest.NewRecorder()
	NewBookingHandler(fb, testLogger).List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/bookings?end_date=nope", nil), "u-bob"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCancelBooking_Routes(t *testing.T) {
	fb := &fakeBookings{result: sampleBooking()}
	h := NewBookingHandler(fb, testLogger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", h.Cancel)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodPost, "/api/v1/bookings/not-a-uuid/cancel", nil), "u-bob"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", rr.Code)
	}

	fb.err = booking.ErrForbidden
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+sampleBooking().ID+"/cancel", nil), "u-carol"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
