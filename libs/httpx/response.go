package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Kind    string              `json:"kind,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// FieldError is one validation failure attached to an input path such as
// "availabilities.2.start_time".
type FieldError struct {
	Field   string
	Message string
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, status int, kind, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Kind: kind})
}

// WriteValidation writes a 422 with messages grouped by field.
func WriteValidation(w http.ResponseWriter, errs []FieldError) {
	grouped := make(map[string][]string, len(errs))
	for _, e := range errs {
		grouped[e.Field] = append(grouped[e.Field], e.Message)
	}
	WriteJSON(w, http.StatusUnprocessableEntity, Envelope{
		Success: false,
		Message: "Validation failed",
		Kind:    "validation",
		Errors:  grouped,
	})
}

func MethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal", "Internal server error")
}
