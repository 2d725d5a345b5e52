// Package id provides the public identifiers exposed by the API.
// Rows keep a serial primary key internally; only the UUID leaves the database.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used for every public identifier.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
// Time ordering keeps the public_id unique index append-friendly.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// Valid reports whether s is a well-formed UUID.
// Lookups by malformed ids short-circuit to "not found" instead of a driver error.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
