package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/storage"
)

type bookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (model.Booking, error)
	List(ctx context.Context, userID string, f storage.ListFilter) ([]model.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID string) (model.Booking, error)
	SetMeetingLink(ctx context.Context, bookingID, actorID, link string) (model.Booking, error)
}

type BookingHandler struct {
	bookings bookingService
	logger   *slog.Logger
}

func NewBookingHandler(svc bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: svc, logger: logger}
}

type createBookingRequest struct {
	Username    string `json:"username"`
	BookingTime string `json:"booking_time"`
	Notes       string `json:"notes"`
}

type meetingLinkRequest struct {
	MeetingLink string `json:"meeting_link"`
}

type bookingItem struct {
	ID          string         `json:"id"`
	BookingTime string         `json:"booking_time"`
	EndTime     string         `json:"end_time"`
	Notes       string         `json:"notes,omitempty"`
	MeetingLink string         `json:"meeting_link,omitempty"`
	Status      string         `json:"status"`
	CancelledAt string         `json:"cancelled_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
	Host        *model.Profile `json:"host,omitempty"`
	Guest       *model.Profile `json:"guest,omitempty"`
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		ID:          b.ID,
		BookingTime: b.BookingTime.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime().UTC().Format(time.RFC3339),
		Notes:       b.Notes,
		MeetingLink: b.MeetingLink,
		Status:      "booked",
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
		Host:        b.Host,
		Guest:       b.Guest,
	}
	if b.CancelledAt != nil {
		item.Status = "cancelled"
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.bookings.Create(r.Context(), booking.CreateInput{
		GuestID:     id.UserID,
		Username:    req.Username,
		BookingTime: req.BookingTime,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(w, r, "create booking failed", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "Booking created successfully", toBookingItem(b))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f, err := booking.ListRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		h.writeError(w, r, "list bookings failed", err)
		return
	}
	list, err := h.bookings.List(r.Context(), id.UserID, f)
	if err != nil {
		h.writeError(w, r, "list bookings failed", err)
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, toBookingItem(b))
	}
	httpx.WriteSuccess(w, http.StatusOK, "Bookings retrieved successfully", items)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.bookings.Cancel(r.Context(), bookingID, id.UserID)
	if err != nil {
		h.writeError(w, r, "cancel booking failed", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Booking cancelled successfully", toBookingItem(b))
}

func (h *BookingHandler) SetMeetingLink(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	var req meetingLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.bookings.SetMeetingLink(r.Context(), bookingID, id.UserID, req.MeetingLink)
	if err != nil {
		h.writeError(w, r, "set meeting link failed", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Meeting link updated successfully", toBookingItem(b))
}

// bookingIDParam rejects ids that are not UUIDs before they reach the store.
func bookingIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("id")
	if _, err := uuid.Parse(raw); err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Booking not found")
		return "", false
	}
	return raw, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]httpx.FieldError, 0, len(verr.Errors))
		for _, e := range verr.Errors {
			fields = append(fields, httpx.FieldError{Field: e.Field, Message: e.Message})
		}
		httpx.WriteValidation(w, fields)
	case errors.Is(err, booking.ErrSlotConflict):
		httpx.WriteError(w, http.StatusConflict, "slot_conflict", "This time slot has already been booked. Please choose another time.")
	case errors.Is(err, booking.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "lock_timeout", "The slot is busy, please retry.")
	case errors.Is(err, booking.ErrGuestNotFound):
		httpx.WriteError(w, http.StatusForbidden, "account_not_ready", "Your account is not available for booking yet.")
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Booking not found")
	case errors.Is(err, booking.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "You are not allowed to modify this booking.")
	case errors.Is(err, booking.ErrBookingCancelled):
		httpx.WriteError(w, http.StatusConflict, "booking_cancelled", "The booking has been cancelled.")
	default:
		internalError(w, r, h.logger, msg, err)
	}
}
