package manufacturer

import (
	"context"
	"time"

	"partscatalog/internal/domain"
)

// Repository defines data access for manufacturers.
// Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	// List returns one page of manufacturers with model counts and the total
	// number of rows matching the same filter.
	List(ctx context.Context, q ListQuery) (*domain.ListResult[*Manufacturer], error)

	FindByPublicID(ctx context.Context, publicID string) (*Manufacturer, error)
	FindBySlug(ctx context.Context, slug string) (*Manufacturer, error)

	// FindByName is a case-sensitive exact match.
	FindByName(ctx context.Context, name string) (*Manufacturer, error)

	// Create inserts m and fills its ID, LogoImageID and timestamps.
	Create(ctx context.Context, m *Manufacturer) error

	// UpdateByPublicID applies the non-nil changes and refreshes updated_at.
	// Returns false when no row matches.
	UpdateByPublicID(ctx context.Context, publicID string, changes Changes) (bool, error)

	// SetActive flips the active flag by internal id and returns the new updated_at.
	SetActive(ctx context.Context, internalID int64, isActive bool, updatedBy *string) (time.Time, bool, error)

	// DeleteByPublicID soft-deletes a manufacturer that still has models and
	// removes it otherwise.
	DeleteByPublicID(ctx context.Context, publicID string) (DeleteResult, error)
}
