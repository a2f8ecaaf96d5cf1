// Package runid allocates and validates run identifiers. A run id is
// "run-" followed by a UUIDv7, which makes ids time-orderable and safe to
// use as filenames.
package runid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Prefix precedes the UUID in every run id.
const Prefix = "run-"

// runIDPattern matches run-<UUIDv7>, case-insensitively. The version nibble
// must be 7 and the variant nibble one of 8, 9, a, b.
var runIDPattern = regexp.MustCompile(`^(?i)run-[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// New allocates a fresh run id.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate run id: %w", err)
	}
	return Prefix + id.String(), nil
}

// NewEventID allocates an event id (a bare UUIDv7) for accepted events.
func NewEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}
	return id.String(), nil
}

// IsValid reports whether s is a well-formed run id.
func IsValid(s string) bool {
	return runIDPattern.MatchString(s)
}

// Validate returns an error describing why s is not a run id, or nil.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid run id %q: want %q followed by a UUIDv7", s, Prefix)
	}
	return nil
}
