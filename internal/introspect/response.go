package introspect

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/validation"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error    string        `json:"error"`
	Message  string        `json:"message"`
	Failures []FailureView `json:"failures,omitempty"`
}

// FailureView describes one validation failure
type FailureView struct {
	Type     string `json:"type,omitempty"`
	Property string `json:"property,omitempty"`
	Message  string `json:"message"`
}

// NewFailureViews describes validation failures
func NewFailureViews(failures []mapping.ValidationFailure) []FailureView {
	views := make([]FailureView, len(failures))
	for i, f := range failures {
		views[i] = FailureView{Type: f.Type, Property: f.Property, Message: f.Message}
	}
	return views
}

func renderJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func renderError(w http.ResponseWriter, status int, err error, code string) {
	renderJSON(w, status, &ErrorResponse{Error: code, Message: err.Error()})
}

// renderMappingError maps mapping errors onto status codes: rejected
// mappings are 422, unknown names 404 and everything else 500
func renderMappingError(w http.ResponseWriter, err error) {
	var validationErrs *validation.Errors
	switch {
	case errors.As(err, &validationErrs):
		renderJSON(w, http.StatusUnprocessableEntity, &ErrorResponse{
			Error:    "mapping_invalid",
			Message:  err.Error(),
			Failures: NewFailureViews(validationErrs.Failures),
		})
	case errors.Is(err, mapping.ErrNotFound):
		renderError(w, http.StatusNotFound, err, "not_found")
	case errors.Is(err, mapping.ErrMapping):
		renderError(w, http.StatusUnprocessableEntity, err, "mapping_error")
	case errors.Is(err, mapping.ErrInvalidState):
		renderError(w, http.StatusInternalServerError, err, "invalid_state")
	default:
		renderError(w, http.StatusInternalServerError, err, "internal_error")
	}
}
