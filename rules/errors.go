package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a rule ID does not exist in the store
	ErrNotFound = errors.New("rule not found")

	// ErrInvalidID is returned when a rule ID is not a well-formed UUID
	ErrInvalidID = errors.New("invalid rule id")
)

// ValidationError collects per-field problems with an input.
// Field keys are dotted paths such as "condition.value".
type ValidationError struct {
	Fields map[string][]string `json:"fieldErrors"`
}

// Add records a problem for the given field path
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any problem was recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns e when problems were recorded, nil otherwise
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ParseID validates a rule ID and returns its canonical form
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return parsed.String(), nil
}
