package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/md-rashed-zaman/slotmeet/libs/auth"
	"github.com/md-rashed-zaman/slotmeet/libs/events"
	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/services/auth-service/internal/storage"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

type UserStore interface {
	Create(ctx context.Context, user *storage.User, event func(storage.User) (outbox.Event, error)) error
	GetByEmail(ctx context.Context, email string) (storage.User, error)
	GetByID(ctx context.Context, id string) (storage.User, error)
	UpdateProfile(ctx context.Context, id string, fn func(u *storage.User) error, event func(storage.User) (outbox.Event, error)) (storage.User, error)
}

type TokenIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
}

type AuthHandler struct {
	users           UserStore
	tokens          TokenIssuer
	logger          *slog.Logger
	defaultTimezone string
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, logger *slog.Logger, defaultTimezone string) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger, defaultTimezone: defaultTimezone}
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name     *string `json:"name"`
	Timezone *string `json:"timezone"`
}

type userResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   string       `json:"expires_at"`
	User        userResponse `json:"user"`
}

func (h *AuthHandler) toUserResponse(u storage.User) userResponse {
	tz := u.Timezone
	if tz == "" {
		tz = h.defaultTimezone
	}
	return userResponse{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email, Timezone: tz}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Timezone = strings.TrimSpace(req.Timezone)

	var errs []httpx.FieldError
	errs = append(errs, checkName(req.Name)...)
	switch {
	case req.Username == "":
		errs = append(errs, httpx.FieldError{Field: "username", Message: "The username field is required."})
	case !usernamePattern.MatchString(req.Username):
		errs = append(errs, httpx.FieldError{Field: "username", Message: "The username may only contain letters, numbers, dashes and underscores (3 to 30 characters)."})
	}
	if req.Email == "" {
		errs = append(errs, httpx.FieldError{Field: "email", Message: "The email field is required."})
	} else if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		errs = append(errs, httpx.FieldError{Field: "email", Message: "The email must be a valid email address."})
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		errs = append(errs, httpx.FieldError{Field: "password", Message: "The password must be at least 8 characters."})
	}
	errs = append(errs, checkTimezone(req.Timezone)...)
	if len(errs) > 0 {
		httpx.WriteValidation(w, errs)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		h.internalError(w, r, "hash password failed", err)
		return
	}
	user := storage.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		Timezone:     req.Timezone,
	}
	err = h.users.Create(r.Context(), &user, userEvent(events.UserCreated))
	switch {
	case errors.Is(err, storage.ErrEmailTaken):
		httpx.WriteValidation(w, []httpx.FieldError{{Field: "email", Message: "The email has already been taken."}})
		return
	case errors.Is(err, storage.ErrUsernameTaken):
		httpx.WriteValidation(w, []httpx.FieldError{{Field: "username", Message: "The username has already been taken."}})
		return
	case err != nil:
		h.internalError(w, r, "create user failed", err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	h.writeToken(w, r, http.StatusCreated, "User registered successfully", user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.WriteValidation(w, requiredCredentials(req))
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}
	if err != nil {
		h.internalError(w, r, "lookup user failed", err)
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}
	h.writeToken(w, r, http.StatusOK, "Login successful", user)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated")
		return
	}
	user, err := h.users.GetByID(r.Context(), id.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "lookup user failed", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "User retrieved successfully", h.toUserResponse(user))
}

// UpdateProfile changes name and/or timezone. An empty timezone clears it
// back to the service default.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated")
		return
	}
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs []httpx.FieldError
	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
		errs = append(errs, checkName(*req.Name)...)
	}
	if req.Timezone != nil {
		*req.Timezone = strings.TrimSpace(*req.Timezone)
		errs = append(errs, checkTimezone(*req.Timezone)...)
	}
	if len(errs) > 0 {
		httpx.WriteValidation(w, errs)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id.UserID, func(u *storage.User) error {
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Timezone != nil {
			u.Timezone = *req.Timezone
		}
		return nil
	}, userEvent(events.UserUpdated))
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "update profile failed", err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Profile updated successfully", h.toUserResponse(user))
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, status int, message string, user storage.User) {
	token, exp, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.internalError(w, r, "issue token failed", err)
		return
	}
	httpx.WriteSuccess(w, status, message, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp.UTC().Format(time.RFC3339),
		User:        h.toUserResponse(user),
	})
}

func (h *AuthHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
	httpx.InternalError(w)
}

// userEvent builds the outbox event for a stored user. Timezone is sent as
// stored; consumers apply their own default.
func userEvent(eventType string) func(storage.User) (outbox.Event, error) {
	return func(u storage.User) (outbox.Event, error) {
		return outbox.NewEvent("user", u.ID, eventType, events.User{
			UserID:    u.ID,
			Name:      u.Name,
			Username:  u.Username,
			Email:     u.Email,
			Timezone:  u.Timezone,
			UpdatedAt: u.UpdatedAt.UTC(),
		})
	}
}

func checkName(name string) []httpx.FieldError {
	switch {
	case name == "":
		return []httpx.FieldError{{Field: "name", Message: "The name field is required."}}
	case utf8.RuneCountInString(name) > 255:
		return []httpx.FieldError{{Field: "name", Message: "The name must not be greater than 255 characters."}}
	}
	return nil
}

func checkTimezone(tz string) []httpx.FieldError {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil || tz == "Local" {
		return []httpx.FieldError{{Field: "timezone", Message: "The timezone must be a valid timezone."}}
	}
	return nil
}

func requiredCredentials(req loginRequest) []httpx.FieldError {
	var errs []httpx.FieldError
	if req.Email == "" {
		errs = append(errs, httpx.FieldError{Field: "email", Message: "The email field is required."})
	}
	if req.Password == "" {
		errs = append(errs, httpx.FieldError{Field: "password", Message: "The password field is required."})
	}
	return errs
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return false
	}
	return true
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
