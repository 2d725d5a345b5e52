package dto

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"partscatalog/internal/domain"
	"partscatalog/internal/domain/catalogs/manufacturer"
)

// ListManufacturersQuery is the parsed query string of the list endpoint.
type ListManufacturersQuery struct {
	Search   string `json:"search"`
	Status   string `json:"status"`
	Verified *bool  `json:"verified"`
	IsActive *bool  `json:"isActive"`
	Country  string `json:"country"`
	Sort     string `json:"sort"`
	Order    string `json:"order"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// ParseListManufacturersQuery reads and validates list parameters. Booleans
// are parsed, so "false" filters on false. A limit above the maximum is
// clamped later rather than rejected.
func ParseListManufacturersQuery(values url.Values) (ListManufacturersQuery, error) {
	q := ListManufacturersQuery{
		Search:  values.Get("search"),
		Status:  strings.ToLower(strings.TrimSpace(values.Get("status"))),
		Country: values.Get("country"),
		Sort:    values.Get("sort"),
		Order:   strings.ToLower(values.Get("order")),
	}

	parseErrs := validation.Errors{}
	var err error
	if q.Verified, err = ParseOptionalBool(values.Get("verified")); err != nil {
		parseErrs["verified"] = err
	}
	if q.IsActive, err = ParseOptionalBool(values.Get("isActive")); err != nil {
		parseErrs["isActive"] = err
	}
	if q.Page, err = ParseOptionalInt(values.Get("page"), 1); err != nil {
		parseErrs["page"] = err
	}
	if q.Limit, err = ParseOptionalInt(values.Get("limit"), manufacturer.DefaultLimit); err != nil {
		parseErrs["limit"] = err
	}
	if len(parseErrs) > 0 {
		return q, parseErrs
	}
	return q, q.Validate()
}

// Validate checks value ranges.
func (q ListManufacturersQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Status, validation.In("active", "inactive", "all")),
		validation.Field(&q.Page, validation.Min(1)),
		validation.Field(&q.Limit, validation.Min(1)),
	)
}

// ToListQuery maps the parameters onto the service query.
func (q ListManufacturersQuery) ToListQuery() manufacturer.ListQuery {
	return manufacturer.ListQuery{
		Filter: manufacturer.ListFilter{
			Search:   q.Search,
			Status:   manufacturer.ParseStatus(q.Status),
			IsActive: q.IsActive,
			Verified: q.Verified,
			Country:  q.Country,
		},
		Sort: manufacturer.ListSort{
			Field: manufacturer.SortField(q.Sort),
			Order: domain.ParseSortOrder(q.Order),
		},
		Page: domain.PageRequest{Page: q.Page, Limit: q.Limit},
	}
}

// CreateManufacturerRequest for POST /manufacturers.
type CreateManufacturerRequest struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	LogoImageID *string `json:"logoImageId"`
	CountryCode *string `json:"countryCode"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
	IsVerified  *bool   `json:"isVerified"`
}

// Validate checks the request shape. Country codes are checked by the service.
func (r CreateManufacturerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

// ToInput maps the request onto the service input.
func (r CreateManufacturerRequest) ToInput() manufacturer.CreateInput {
	return manufacturer.CreateInput{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		LogoImageID: r.LogoImageID,
		CountryCode: r.CountryCode,
		Description: r.Description,
		IsActive:    r.IsActive,
		IsVerified:  r.IsVerified,
	}
}

// UpdateManufacturerRequest for PUT /manufacturers/:id. Omitted fields are
// left unchanged.
type UpdateManufacturerRequest struct {
	DisplayName *string `json:"displayName"`
	LogoImageID *string `json:"logoImageId"`
	CountryCode *string `json:"countryCode"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
	IsVerified  *bool   `json:"isVerified"`
}

// Validate checks the request shape.
func (r UpdateManufacturerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Length(0, 100)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

// ToInput maps the request onto the service input.
func (r UpdateManufacturerRequest) ToInput() manufacturer.UpdateInput {
	return manufacturer.UpdateInput{
		DisplayName: r.DisplayName,
		LogoImageID: r.LogoImageID,
		CountryCode: r.CountryCode,
		Description: r.Description,
		IsActive:    r.IsActive,
		IsVerified:  r.IsVerified,
	}
}

// ToggleStatusRequest for PATCH /manufacturers/:id/status.
type ToggleStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

func (r ToggleStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

// MaxBatchSize bounds one batch status request.
const MaxBatchSize = 100

// BatchStatusRequest for POST /manufacturers/batch/status.
type BatchStatusRequest struct {
	IDs      []string `json:"ids"`
	IsActive *bool    `json:"isActive"`
}

func (r BatchStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Length(1, MaxBatchSize)),
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

// ManufacturerResponse is the list shape.
type ManufacturerResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Slug        string  `json:"slug"`
	LogoImageID *string `json:"logoImageId"`
	CountryCode *string `json:"countryCode"`
	Description *string `json:"description"`
	IsActive    bool    `json:"isActive"`
	IsVerified  bool    `json:"isVerified"`
	ModelCount  int64   `json:"modelCount"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ManufacturerDetailResponse adds the audit actors.
type ManufacturerDetailResponse struct {
	ManufacturerResponse
	CreatedBy *string `json:"createdBy"`
	UpdatedBy *string `json:"updatedBy"`
}

// FromManufacturer maps a row to the list shape.
func FromManufacturer(m *manufacturer.Manufacturer) ManufacturerResponse {
	return ManufacturerResponse{
		ID:          m.PublicID.String(),
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Slug:        m.Slug,
		LogoImageID: m.LogoImagePublicID,
		CountryCode: m.CountryCode,
		Description: m.Description,
		IsActive:    m.IsActive,
		IsVerified:  m.IsVerified,
		ModelCount:  m.ModelCount,
		CreatedAt:   formatTime(m.CreatedAt),
		UpdatedAt:   formatTime(m.UpdatedAt),
	}
}

// FromManufacturerDetail maps a row to the detail shape.
func FromManufacturerDetail(m *manufacturer.Manufacturer) ManufacturerDetailResponse {
	return ManufacturerDetailResponse{
		ManufacturerResponse: FromManufacturer(m),
		CreatedBy:            m.CreatedBy,
		UpdatedBy:            m.UpdatedBy,
	}
}

// FromManufacturers maps a page of rows.
func FromManufacturers(items []*manufacturer.Manufacturer) []ManufacturerResponse {
	out := make([]ManufacturerResponse, len(items))
	for i, m := range items {
		out[i] = FromManufacturer(m)
	}
	return out
}

// ManufacturerListResponse is {data, pagination}.
type ManufacturerListResponse struct {
	Data       []ManufacturerResponse `json:"data"`
	Pagination domain.Pagination      `json:"pagination"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
