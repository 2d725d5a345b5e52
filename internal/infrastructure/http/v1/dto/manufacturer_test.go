package dto

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/entity"
	"partscatalog/internal/core/id"
	"partscatalog/internal/domain"
	"partscatalog/internal/domain/catalogs/manufacturer"
)

func TestParseListManufacturersQuery_Defaults(t *testing.T) {
	q, err := ParseListManufacturersQuery(url.Values{})
	require.NoError(t, err)

	lq := q.ToListQuery().Normalize()
	assert.Equal(t, manufacturer.StatusAll, lq.Filter.Status)
	assert.Nil(t, lq.Filter.IsActive)
	assert.Nil(t, lq.Filter.Verified)
	assert.Equal(t, manufacturer.SortByName, lq.Sort.Field)
	assert.Equal(t, domain.SortAsc, lq.Sort.Order)
	assert.Equal(t, domain.PageRequest{Page: 1, Limit: 20}, lq.Page)
}

func TestParseListManufacturersQuery_RealBooleans(t *testing.T) {
	q, err := ParseListManufacturersQuery(url.Values{
		"isActive": {"false"},
		"verified": {"TRUE"},
		"country":  {"de"},
		"sort":     {"model_count"},
		"order":    {"DESC"},
		"page":     {"2"},
		"limit":    {"500"},
	})
	require.NoError(t, err)

	lq := q.ToListQuery().Normalize()
	require.NotNil(t, lq.Filter.IsActive)
	assert.False(t, *lq.Filter.IsActive)
	require.NotNil(t, lq.Filter.Verified)
	assert.True(t, *lq.Filter.Verified)
	assert.Equal(t, "DE", lq.Filter.Country)
	assert.Equal(t, manufacturer.SortByModelCount, lq.Sort.Field)
	assert.Equal(t, domain.SortDesc, lq.Sort.Order)
	assert.Equal(t, domain.PageRequest{Page: 2, Limit: 100}, lq.Page)
}

func TestParseListManufacturersQuery_UnknownSortFallsBack(t *testing.T) {
	q, err := ParseListManufacturersQuery(url.Values{"sort": {"slug"}, "order": {"desc"}})
	require.NoError(t, err)

	lq := q.ToListQuery().Normalize()
	assert.Equal(t, manufacturer.SortByName, lq.Sort.Field)
	assert.Equal(t, domain.SortAsc, lq.Sort.Order)
}

func TestParseListManufacturersQuery_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		field string
	}{
		{"bad bool", url.Values{"isActive": {"maybe"}}, "isActive"},
		{"bad page", url.Values{"page": {"x"}}, "page"},
		{"zero page", url.Values{"page": {"0"}}, "page"},
		{"zero limit", url.Values{"limit": {"0"}}, "limit"},
		{"bad status", url.Values{"status": {"deleted"}}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListManufacturersQuery(tt.query)
			require.Error(t, err)

			appErr := apperror.FromValidation(err)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Details["fields"], tt.field)
		})
	}
}

func TestCreateManufacturerRequest_Validate(t *testing.T) {
	assert.NoError(t, CreateManufacturerRequest{Name: "Tesla", DisplayName: "Tesla Inc."}.Validate())
	assert.Error(t, CreateManufacturerRequest{DisplayName: "Tesla Inc."}.Validate())
	assert.Error(t, CreateManufacturerRequest{Name: "Tesla"}.Validate())
}

func TestBatchStatusRequest_Validate(t *testing.T) {
	yes := true
	assert.NoError(t, BatchStatusRequest{IDs: []string{"a"}, IsActive: &yes}.Validate())
	assert.Error(t, BatchStatusRequest{IDs: []string{"a"}}.Validate())
	assert.Error(t, BatchStatusRequest{IsActive: &yes}.Validate())
}

func TestFromManufacturerDetail(t *testing.T) {
	actor := "0192f1c2-0000-7000-8000-000000000001"
	m := &manufacturer.Manufacturer{
		Identity:    entity.Identity{ID: 7, PublicID: id.New()},
		Name:        "Tesla",
		DisplayName: "Tesla Inc.",
		Slug:        "tesla",
		ModelCount:  3,
		AuditFields: entity.AuditFields{
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			CreatedBy: &actor,
		},
	}

	got := FromManufacturerDetail(m)
	assert.Equal(t, m.PublicID.String(), got.ID)
	assert.Equal(t, int64(3), got.ModelCount)
	assert.Equal(t, "2026-03-01T10:00:00Z", got.CreatedAt)
	assert.Equal(t, &actor, got.CreatedBy)
	assert.Nil(t, got.UpdatedBy)
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"logo", "brand", "x"}, ParseTags([]string{"logo, brand", " ", "x"}))
	assert.Nil(t, ParseTags(nil))
}
