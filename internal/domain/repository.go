// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"math"

	"partscatalog/internal/core/id"
)

// --- Sorting & Pagination ---

// SortOrder is the direction of a list sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder maps anything but "desc" to ascending.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == SortDesc {
		return SortDesc
	}
	return SortAsc
}

// PageRequest is a 1-based page and its size.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request: page >= 1, limit in [1, maxLimit],
// defaultLimit when unset.
func (p PageRequest) Normalize(defaultLimit, maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination describes a page within a result set.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination computes page metadata from the total row count.
func NewPagination(req PageRequest, total int64) Pagination {
	totalPages := 0
	if req.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.Limit)))
	}
	return Pagination{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// --- Cross-cutting write side effects ---

// Event is a domain event recorded in the outbox with the change that caused it.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher stores events for asynchronous delivery.
// Implementations must join the transaction carried by ctx.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ChangeRecorder writes audit trail entries.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// AuditRecord is one entry of an entity's history.
type AuditRecord struct {
	Action    string         `json:"action"`
	Changes   map[string]any `json:"changes,omitempty"`
	UserID    *string        `json:"userId,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

// HistoryReader reads audit trail entries, newest first.
type HistoryReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRecord, error)
}
