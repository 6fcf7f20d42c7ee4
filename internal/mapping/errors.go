package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is matched by every StateError
	ErrInvalidState = errors.New("invalid mapping state")

	// ErrMapping is matched by every MappingError
	ErrMapping = errors.New("mapping error")

	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")
)

// StateError reports a call made in the wrong lifecycle state: a set-once
// operation called twice, a mutation of a frozen node, or a query against
// an unpopulated collection. It always indicates an ordering bug in the caller.
type StateError struct {
	Type    string
	Message string
}

// Error implements the error interface
func (e *StateError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is makes errors.Is(err, ErrInvalidState) succeed
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

func newStateError(typeName, format string, args ...interface{}) *StateError {
	return &StateError{Type: typeName, Message: fmt.Sprintf(format, args...)}
}

// NewStateError creates a StateError for the given type
func NewStateError(typeName, format string, args ...interface{}) *StateError {
	return newStateError(typeName, format, args...)
}

// MappingError reports a domain-level inconsistency found while composing
// or validating the graph.
type MappingError struct {
	Type     string
	Property string
	Message  string
	Hint     string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	var b strings.Builder

	switch {
	case e.Property != "" && strings.HasPrefix(e.Property, e.Type+"."):
		b.WriteString(e.Property)
		b.WriteString(": ")
	case e.Type != "" && e.Property != "":
		b.WriteString(e.Type)
		b.WriteString(".")
		b.WriteString(e.Property)
		b.WriteString(": ")
	case e.Type != "":
		b.WriteString(e.Type)
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Is makes errors.Is(err, ErrMapping) succeed
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// NewMappingError creates a MappingError without a property context
func NewMappingError(typeName, format string, args ...interface{}) *MappingError {
	return &MappingError{Type: typeName, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned by query APIs when a type, class, property or
// relation is not part of the configuration.
type NotFoundError struct {
	Kind string
	Key  string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) succeed
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}
