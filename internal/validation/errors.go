package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// Errors aggregates the failures of a validation run
type Errors struct {
	Failures []mapping.ValidationFailure
}

// NewErrors creates an empty failure aggregate
func NewErrors() *Errors {
	return &Errors{}
}

// Add appends failures
func (e *Errors) Add(failures ...mapping.ValidationFailure) {
	e.Failures = append(e.Failures, failures...)
}

// HasErrors returns true if there is at least one failure
func (e *Errors) HasErrors() bool {
	return len(e.Failures) > 0
}

// Count returns the number of failures
func (e *Errors) Count() int {
	return len(e.Failures)
}

// Error implements the error interface
func (e *Errors) Error() string {
	if !e.HasErrors() {
		return "mapping validation failed"
	}
	if len(e.Failures) == 1 {
		return fmt.Sprintf("mapping validation failed: %s", e.Failures[0].Error())
	}

	messages := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		messages = append(messages, "  - "+strings.ReplaceAll(f.Error(), "\n", "\n    "))
	}
	return fmt.Sprintf("mapping validation failed with %d errors:\n%s", len(e.Failures), strings.Join(messages, "\n"))
}

// Is makes errors.Is(err, mapping.ErrMapping) succeed
func (e *Errors) Is(target error) bool {
	return target == mapping.ErrMapping
}

// Unwrap exposes every failure as a *mapping.MappingError
func (e *Errors) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, &mapping.MappingError{Type: f.Type, Property: f.Property, Message: f.Message})
	}
	return errs
}

// MarshalJSON implements json.Marshaler
func (e *Errors) MarshalJSON() ([]byte, error) {
	type failure struct {
		Type     string `json:"type,omitempty"`
		Property string `json:"property,omitempty"`
		Message  string `json:"message"`
	}
	failures := make([]failure, 0, len(e.Failures))
	for _, f := range e.Failures {
		failures = append(failures, failure{Type: f.Type, Property: f.Property, Message: f.Message})
	}
	return json.Marshal(struct {
		Error    string    `json:"error"`
		Failures []failure `json:"failures"`
	}{
		Error:    "mapping_validation_failed",
		Failures: failures,
	})
}
