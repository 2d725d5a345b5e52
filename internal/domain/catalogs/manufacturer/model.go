// Package manufacturer provides the Manufacturer catalog: vehicle and part
// makers that own the model line-up of the parts catalog.
package manufacturer

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/entity"
	"partscatalog/internal/domain"
)

// EntityName is used in error messages and the audit trail.
const EntityName = "Manufacturer"

// Manufacturer is a catalog row joined with its aggregates.
type Manufacturer struct {
	entity.Identity

	// Name is globally unique and drives the slug
	Name        string `db:"name" json:"name"`
	DisplayName string `db:"display_name" json:"displayName"`

	// Slug is derived from Name on create and never set independently
	Slug string `db:"slug" json:"slug"`

	// LogoImageID references file.id; LogoImagePublicID is the joined file.public_id
	LogoImageID       *int64  `db:"logo_image_id" json:"-"`
	LogoImagePublicID *string `db:"logo_image_public_id" json:"logoImageId,omitempty"`

	// CountryCode is a 2-letter uppercase ISO code
	CountryCode *string `db:"country_code" json:"countryCode,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	IsActive   bool `db:"is_active" json:"isActive"`
	IsVerified bool `db:"is_verified" json:"isVerified"`

	// ModelCount is COUNT(model.id), only filled by aggregate queries
	ModelCount int64 `db:"model_count" json:"modelCount"`

	entity.AuditFields
}

// Validate checks the row invariants before it is written.
func (m *Manufacturer) Validate(_ context.Context) error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.DisplayName, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.Slug, validation.Required),
	)
	if err != nil {
		return apperror.NewValidation("invalid manufacturer").WithDetail("fields", err.Error())
	}
	if m.CountryCode != nil && !countryCodePattern.MatchString(*m.CountryCode) {
		return ErrInvalidCountryCode()
	}
	return nil
}

// Snapshot returns the writable fields, used for audit diffs and event payloads.
func (m *Manufacturer) Snapshot() map[string]any {
	return map[string]any{
		"name":        m.Name,
		"displayName": m.DisplayName,
		"slug":        m.Slug,
		"logoImageId": derefOr(m.LogoImagePublicID),
		"countryCode": derefOr(m.CountryCode),
		"description": derefOr(m.Description),
		"isActive":    m.IsActive,
		"isVerified":  m.IsVerified,
	}
}

func derefOr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// --- List parameters ---

// Status filters on the active flag.
type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus maps unknown values to StatusAll.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(s)) {
	case StatusActive:
		return StatusActive
	case StatusInactive:
		return StatusInactive
	default:
		return StatusAll
	}
}

// SortField is a supported list sort key.
type SortField string

const (
	SortByName       SortField = "name"
	SortByCreatedAt  SortField = "created_at"
	SortByModelCount SortField = "model_count"
)

// Valid reports whether the field is one of the supported keys.
func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortByCreatedAt, SortByModelCount:
		return true
	}
	return false
}

const (
	DefaultLimit       = 20
	MaxLimit           = 100
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// ListFilter holds conjunctive predicates. Zero values mean "not filtered".
type ListFilter struct {
	Search   string
	Status   Status
	IsActive *bool
	Verified *bool
	Country  string
}

// ListSort orders a list query.
type ListSort struct {
	Field SortField
	Order domain.SortOrder
}

// ListQuery is a filtered, sorted page request.
type ListQuery struct {
	Filter ListFilter
	Sort   ListSort
	Page   domain.PageRequest
}

// Normalize applies the list defaults: status all, name ascending, page 1,
// limit 20 capped at 100. An unknown sort key falls back to name ascending.
func (q ListQuery) Normalize() ListQuery {
	q.Filter.Search = strings.TrimSpace(q.Filter.Search)
	q.Filter.Country = strings.ToUpper(strings.TrimSpace(q.Filter.Country))
	if q.Filter.Status == "" {
		q.Filter.Status = StatusAll
	}
	if q.Sort.Field == "" {
		q.Sort.Field = SortByName
	}
	if !q.Sort.Field.Valid() {
		q.Sort = ListSort{Field: SortByName, Order: domain.SortAsc}
	}
	if q.Sort.Order != domain.SortDesc {
		q.Sort.Order = domain.SortAsc
	}
	q.Page = q.Page.Normalize(DefaultLimit, MaxLimit)
	return q
}

// --- Write inputs ---

// CreateInput carries a create request after shape validation.
type CreateInput struct {
	Name        string
	DisplayName string
	LogoImageID *string
	CountryCode *string
	Description *string
	IsActive    *bool
	IsVerified  *bool
}

// UpdateInput is a partial update: nil fields are left unchanged.
type UpdateInput struct {
	DisplayName *string
	LogoImageID *string
	CountryCode *string
	Description *string
	IsActive    *bool
	IsVerified  *bool
}

// Changes is the normalized column set handed to the repository.
type Changes struct {
	DisplayName       *string
	LogoImagePublicID *string
	CountryCode       *string
	Description       *string
	IsActive          *bool
	IsVerified        *bool
	UpdatedBy         *string
}

// Map returns the supplied changes keyed like Snapshot.
func (c Changes) Map() map[string]any {
	out := make(map[string]any)
	if c.DisplayName != nil {
		out["displayName"] = *c.DisplayName
	}
	if c.LogoImagePublicID != nil {
		out["logoImageId"] = *c.LogoImagePublicID
	}
	if c.CountryCode != nil {
		out["countryCode"] = *c.CountryCode
	}
	if c.Description != nil {
		out["description"] = *c.Description
	}
	if c.IsActive != nil {
		out["isActive"] = *c.IsActive
	}
	if c.IsVerified != nil {
		out["isVerified"] = *c.IsVerified
	}
	return out
}

// --- Results ---

// DeleteResult reports what the delete policy did.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Soft    bool   `json:"soft"`
	Reason  string `json:"reason,omitempty"`
}

// BatchResult splits a batch operation by outcome.
type BatchResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}
