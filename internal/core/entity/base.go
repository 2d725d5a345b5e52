// Package entity holds building blocks shared by persisted domain entities.
package entity

import (
	"time"

	"partscatalog/internal/core/id"
)

// Identity pairs the internal serial key with the public UUID.
// The serial key never leaves the storage and domain layers.
type Identity struct {
	// ID is the database primary key
	ID int64 `db:"id" json:"-"`

	// PublicID is the externally visible identifier, immutable after insert
	PublicID id.ID `db:"public_id" json:"id"`
}

// AuditFields are maintained on every write.
type AuditFields struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy *string   `db:"updated_by" json:"updatedBy,omitempty"`
}

// SetCreatedBy records the actor on both audit columns, as a fresh row has
// been created and last updated by the same user.
func (a *AuditFields) SetCreatedBy(userID string) {
	if userID == "" {
		return
	}
	a.CreatedBy = &userID
	a.UpdatedBy = &userID
}

// SetUpdatedBy records the actor of the latest change.
func (a *AuditFields) SetUpdatedBy(userID string) {
	if userID == "" {
		return
	}
	a.UpdatedBy = &userID
}
