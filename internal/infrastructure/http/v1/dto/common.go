// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"errors"
	"strconv"
	"strings"
)

// IDResponse for create operations that return only the new id.
type IDResponse struct {
	ID string `json:"id"`
}

// DataResponse wraps a payload as {"data": ...}.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// JobResponse acknowledges background work.
type JobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// ParseOptionalBool parses a query flag. Empty means absent; "false" and "0"
// are real falses.
func ParseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil, errors.New("must be true or false")
	}
	return &v, nil
}

// ParseOptionalInt parses a query number. Empty yields def.
func ParseOptionalInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return v, nil
}
