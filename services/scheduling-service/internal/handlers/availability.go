package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/schedule"
)

const (
	minMonthYear  = 2000
	yearsAheadMax = 10
)

type scheduleService interface {
	Now() time.Time
	Rules(ctx context.Context, userID string) ([]model.Availability, error)
	ReplaceRules(ctx context.Context, userID string, inputs []availability.RuleInput) ([]availability.Rule, error)
	MonthAvailability(ctx context.Context, username string, year int, month time.Month) (schedule.MonthResult, error)
}

type AvailabilityHandler struct {
	schedule scheduleService
	logger   *slog.Logger
}

func NewAvailabilityHandler(svc scheduleService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{schedule: svc, logger: logger}
}

type ruleItem struct {
	ID          string                 `json:"id,omitempty"`
	DayOfWeek   availability.Weekday   `json:"day_of_week"`
	StartTime   availability.TimeOfDay `json:"start_time"`
	EndTime     availability.TimeOfDay `json:"end_time"`
	IsAvailable bool                   `json:"is_available"`
}

type replaceRulesRequest struct {
	Availabilities []availability.RuleInput `json:"availabilities"`
}

type monthUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type monthResponse struct {
	User               monthUser                      `json:"user"`
	AvailableTimeSlots []availability.DayAvailability `json:"available_time_slots"`
}

// List returns the caller's rules.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	rows, err := h.schedule.Rules(r.Context(), id.UserID)
	if err != nil {
		internalError(w, r, h.logger, "list availabilities failed", err)
		return
	}
	items := make([]ruleItem, 0, len(rows))
	for _, a := range rows {
		items = append(items, ruleItem{
			ID:          a.ID,
			DayOfWeek:   a.DayOfWeek,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			IsAvailable: a.IsAvailable,
		})
	}
	httpx.WriteSuccess(w, http.StatusOK, "Availabilities retrieved successfully", items)
}

// Replace swaps the caller's whole rule set.
func (h *AvailabilityHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req replaceRulesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rules, err := h.schedule.ReplaceRules(r.Context(), id.UserID, req.Availabilities)
	var verr *schedule.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteValidation(w, ruleFieldErrors(verr.Errors))
		return
	case err != nil:
		internalError(w, r, h.logger, "replace availabilities failed", err)
		return
	}

	items := make([]ruleItem, 0, len(rules))
	for _, rule := range availability.SortForDisplay(rules) {
		items = append(items, ruleItem{DayOfWeek: rule.Day, StartTime: rule.Start, EndTime: rule.End, IsAvailable: rule.Available})
	}
	h.logger.Info("availabilities replaced", "user_id", id.UserID, "rules", len(items))
	httpx.WriteSuccess(w, http.StatusOK, "Availabilities saved successfully", items)
}

// Month is public: any caller may view a host's month by username.
func (h *AvailabilityHandler) Month(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := h.schedule.Now()

	var errs []httpx.FieldError
	username := strings.TrimSpace(q.Get("username"))
	if username == "" {
		errs = append(errs, httpx.FieldError{Field: "username", Message: "The username field is required."})
	}
	year, ok := intParam(q.Get("year"), now.Year())
	maxYear := now.Year() + yearsAheadMax
	if !ok {
		errs = append(errs, httpx.FieldError{Field: "year", Message: "The year must be an integer."})
	} else if year < minMonthYear || year > maxYear {
		errs = append(errs, httpx.FieldError{Field: "year", Message: "The year must be between " + strconv.Itoa(minMonthYear) + " and " + strconv.Itoa(maxYear) + "."})
	}
	month, ok := intParam(q.Get("month"), int(now.Month()))
	if !ok {
		errs = append(errs, httpx.FieldError{Field: "month", Message: "The month must be an integer."})
	} else if month < 1 || month > 12 {
		errs = append(errs, httpx.FieldError{Field: "month", Message: "The month must be between 1 and 12."})
	}
	if len(errs) > 0 {
		httpx.WriteValidation(w, errs)
		return
	}

	res, err := h.schedule.MonthAvailability(r.Context(), username, year, time.Month(month))
	switch {
	case errors.Is(err, schedule.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		return
	case err != nil:
		internalError(w, r, h.logger, "month availability failed", err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "Available time slots retrieved successfully", monthResponse{
		User:               monthUser{Name: res.User.Name, Username: res.User.Username},
		AvailableTimeSlots: res.Days,
	})
}

// intParam parses an optional integer query value.
func intParam(raw string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
