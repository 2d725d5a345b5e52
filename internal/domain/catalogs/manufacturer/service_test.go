package manufacturer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/id"
	"partscatalog/internal/domain"
)

// memRepo is an in-memory Repository with the same filter and delete
// semantics as the Postgres implementation.
type memRepo struct {
	rows      []*Manufacturer
	models    map[int64]int
	files     map[string]int64
	nextID    int64
	failSetOn map[int64]error
}

func newMemRepo() *memRepo {
	return &memRepo{models: map[int64]int{}, files: map[string]int64{}, failSetOn: map[int64]error{}}
}

func (r *memRepo) clone(m *Manufacturer) *Manufacturer {
	c := *m
	c.ModelCount = int64(r.models[m.ID])
	return &c
}

func (r *memRepo) matches(m *Manufacturer, f ListFilter) bool {
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(m.Name), term) && !strings.Contains(strings.ToLower(m.DisplayName), term) {
			return false
		}
	}
	switch f.Status {
	case StatusActive:
		if !m.IsActive {
			return false
		}
	case StatusInactive:
		if m.IsActive {
			return false
		}
	}
	if f.IsActive != nil && m.IsActive != *f.IsActive {
		return false
	}
	if f.Verified != nil && m.IsVerified != *f.Verified {
		return false
	}
	if f.Country != "" && (m.CountryCode == nil || *m.CountryCode != f.Country) {
		return false
	}
	return true
}

func (r *memRepo) List(_ context.Context, q ListQuery) (*domain.ListResult[*Manufacturer], error) {
	var matched []*Manufacturer
	for _, m := range r.rows {
		if r.matches(m, q.Filter) {
			matched = append(matched, r.clone(m))
		}
	}
	slices.SortFunc(matched, func(a, b *Manufacturer) int {
		c := strings.Compare(a.Name, b.Name)
		if q.Sort.Order == domain.SortDesc {
			return -c
		}
		return c
	})

	total := int64(len(matched))
	start := min(q.Page.Offset(), len(matched))
	end := min(start+q.Page.Limit, len(matched))
	return &domain.ListResult[*Manufacturer]{
		Items:      matched[start:end],
		Pagination: domain.NewPagination(q.Page, total),
	}, nil
}

func (r *memRepo) find(pred func(*Manufacturer) bool) *Manufacturer {
	for _, m := range r.rows {
		if pred(m) {
			return r.clone(m)
		}
	}
	return nil
}

func (r *memRepo) FindByPublicID(_ context.Context, publicID string) (*Manufacturer, error) {
	return r.find(func(m *Manufacturer) bool { return m.PublicID.String() == publicID }), nil
}

func (r *memRepo) FindBySlug(_ context.Context, slug string) (*Manufacturer, error) {
	return r.find(func(m *Manufacturer) bool { return m.Slug == slug }), nil
}

func (r *memRepo) FindByName(_ context.Context, name string) (*Manufacturer, error) {
	return r.find(func(m *Manufacturer) bool { return m.Name == name }), nil
}

func (r *memRepo) Create(_ context.Context, m *Manufacturer) error {
	for _, existing := range r.rows {
		if existing.Name == m.Name || existing.Slug == m.Slug {
			return ErrDuplicateName(m.Name)
		}
	}
	if m.LogoImagePublicID != nil {
		fileID, ok := r.files[*m.LogoImagePublicID]
		if !ok {
			return ErrLogoNotFound(*m.LogoImagePublicID)
		}
		m.LogoImageID = &fileID
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	stored := *m
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *memRepo) UpdateByPublicID(_ context.Context, publicID string, c Changes) (bool, error) {
	for _, m := range r.rows {
		if m.PublicID.String() != publicID {
			continue
		}
		if c.DisplayName != nil {
			m.DisplayName = *c.DisplayName
		}
		if c.LogoImagePublicID != nil {
			m.LogoImagePublicID = c.LogoImagePublicID
		}
		if c.CountryCode != nil {
			m.CountryCode = c.CountryCode
		}
		if c.Description != nil {
			m.Description = c.Description
		}
		if c.IsActive != nil {
			m.IsActive = *c.IsActive
		}
		if c.IsVerified != nil {
			m.IsVerified = *c.IsVerified
		}
		if c.UpdatedBy != nil {
			m.UpdatedBy = c.UpdatedBy
		}
		m.UpdatedAt = time.Now()
		return true, nil
	}
	return false, nil
}

func (r *memRepo) SetActive(_ context.Context, internalID int64, isActive bool, updatedBy *string) (time.Time, bool, error) {
	if err := r.failSetOn[internalID]; err != nil {
		return time.Time{}, false, err
	}
	for _, m := range r.rows {
		if m.ID == internalID {
			m.IsActive = isActive
			m.UpdatedBy = updatedBy
			m.UpdatedAt = time.Now()
			return m.UpdatedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (r *memRepo) DeleteByPublicID(_ context.Context, publicID string) (DeleteResult, error) {
	for i, m := range r.rows {
		if m.PublicID.String() != publicID {
			continue
		}
		if r.models[m.ID] > 0 {
			m.IsActive = false
			return DeleteResult{Deleted: true, Soft: true}, nil
		}
		r.rows = slices.Delete(r.rows, i, i+1)
		return DeleteResult{Deleted: true}, nil
	}
	return DeleteResult{}, nil
}

type recordedEvents struct {
	events  []domain.Event
	changes []string
}

func (e *recordedEvents) Publish(_ context.Context, event domain.Event) error {
	e.events = append(e.events, event)
	return nil
}

func (e *recordedEvents) RecordChange(_ context.Context, _ string, _ id.ID, action string, _ map[string]any) error {
	e.changes = append(e.changes, action)
	return nil
}

func newTestService(t *testing.T) (*Service, *memRepo, *recordedEvents) {
	t.Helper()
	repo := newMemRepo()
	rec := &recordedEvents{}
	svc := NewService(ServiceConfig{Repo: repo, Events: rec, Audit: rec})
	return svc, repo, rec
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func mustCreate(t *testing.T, svc *Service, name string) *Manufacturer {
	t.Helper()
	m, err := svc.Create(context.Background(), CreateInput{Name: name, DisplayName: name}, "")
	require.NoError(t, err)
	return m
}

func TestService_Create_Scenario(t *testing.T) {
	svc, _, rec := newTestService(t)
	actor := id.New().String()

	m, err := svc.Create(context.Background(), CreateInput{
		Name:        "  Tesla ",
		DisplayName: "Tesla Inc.",
		CountryCode: strPtr("us"),
	}, actor)
	require.NoError(t, err)

	assert.Equal(t, "Tesla", m.Name)
	assert.Equal(t, "tesla", m.Slug)
	require.NotNil(t, m.CountryCode)
	assert.Equal(t, "US", *m.CountryCode)
	assert.True(t, m.IsActive)
	assert.False(t, m.IsVerified)
	assert.False(t, id.IsNil(m.PublicID))
	require.NotNil(t, m.CreatedBy)
	assert.Equal(t, actor, *m.CreatedBy)
	assert.Equal(t, actor, *m.UpdatedBy)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventCreated, rec.events[0].EventType)
	assert.Equal(t, m.PublicID, rec.events[0].AggregateID)
	assert.Equal(t, []string{ActionCreate}, rec.changes)
}

func TestService_Create_DuplicateName(t *testing.T) {
	svc, repo, rec := newTestService(t)
	mustCreate(t, svc, "Tesla")
	rec.events = nil

	_, err := svc.Create(context.Background(), CreateInput{Name: "Tesla", DisplayName: "Other"}, "")

	require.Error(t, err)
	assert.True(t, apperror.IsDuplicate(err))
	assert.Contains(t, err.Error(), `"Tesla"`)
	assert.Len(t, repo.rows, 1, "no row is written")
	assert.Empty(t, rec.events)
}

func TestService_Create_NameCheckIsCaseSensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "Tesla")

	_, err := svc.Create(context.Background(), CreateInput{Name: "TESLA", DisplayName: "Tesla"}, "")

	// The slug collides, which the store rejects like the unique index would.
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicate(err))
}

func TestService_Create_CountryCode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "us", want: "US"},
		{input: "De", want: "DE"},
		{input: " jp ", want: "JP"},
		{input: "USA", wantErr: true},
		{input: "u1", wantErr: true},
		{input: "ü", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			svc, repo, _ := newTestService(t)
			m, err := svc.Create(context.Background(), CreateInput{
				Name: "Maker", DisplayName: "Maker", CountryCode: strPtr(tt.input),
			}, "")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsValidation(err))
				assert.Equal(t, "Country code must be a 2-letter uppercase ISO code", asAppError(t, err).Message)
				assert.Empty(t, repo.rows)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *m.CountryCode)
		})
	}
}

func TestService_Create_BlankCountryIsAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)

	m, err := svc.Create(context.Background(), CreateInput{Name: "Maker", DisplayName: "Maker", CountryCode: strPtr("  ")}, "")

	require.NoError(t, err)
	assert.Nil(t, m.CountryCode)
}

func TestService_Create_Logo(t *testing.T) {
	svc, repo, _ := newTestService(t)
	logo := id.New().String()
	repo.files[logo] = 42

	m, err := svc.Create(context.Background(), CreateInput{Name: "A", DisplayName: "A", LogoImageID: strPtr(" " + logo + " ")}, "")
	require.NoError(t, err)
	require.NotNil(t, m.LogoImageID)
	assert.EqualValues(t, 42, *m.LogoImageID)
	assert.Equal(t, logo, *m.LogoImagePublicID)

	_, err = svc.Create(context.Background(), CreateInput{Name: "B", DisplayName: "B", LogoImageID: strPtr("img_abc123")}, "")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(context.Background(), CreateInput{Name: "C", DisplayName: "C", LogoImageID: strPtr(id.New().String())}, "")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestService_Create_UnsluggableName(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Name: "!!!", DisplayName: "Bang"}, "")

	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestService_List_Pagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, name := range []string{"Audi", "BMW", "Citroen", "Dacia", "Ford"} {
		mustCreate(t, svc, name)
	}

	result, err := svc.List(context.Background(), ListQuery{Page: domain.PageRequest{Page: 2, Limit: 3}})
	require.NoError(t, err)

	assert.Len(t, result.Items, 2)
	assert.Equal(t, "Dacia", result.Items[0].Name)
	assert.Equal(t, 2, result.Pagination.TotalPages)
	assert.EqualValues(t, 5, result.Pagination.Total)
	assert.False(t, result.Pagination.HasNext)
	assert.True(t, result.Pagination.HasPrev)
}

func TestService_List_Filters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "Audi")
	bmw := mustCreate(t, svc, "BMW")
	_, err := svc.Create(ctx, CreateInput{Name: "Toyota", DisplayName: "Toyota Motor", CountryCode: strPtr("jp")}, "")
	require.NoError(t, err)
	_, err = svc.ToggleStatus(ctx, bmw.PublicID.String(), false, "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		query ListQuery
		want  []string
	}{
		{name: "defaults", query: ListQuery{}, want: []string{"Audi", "BMW", "Toyota"}},
		{name: "active", query: ListQuery{Filter: ListFilter{Status: StatusActive}}, want: []string{"Audi", "Toyota"}},
		{name: "inactive", query: ListQuery{Filter: ListFilter{Status: StatusInactive}}, want: []string{"BMW"}},
		{name: "isActive false", query: ListQuery{Filter: ListFilter{IsActive: boolPtr(false)}}, want: []string{"BMW"}},
		{name: "status and isActive conflict", query: ListQuery{Filter: ListFilter{Status: StatusActive, IsActive: boolPtr(false)}}, want: nil},
		{name: "display name search", query: ListQuery{Filter: ListFilter{Search: "motor"}}, want: []string{"Toyota"}},
		{name: "country uppercased", query: ListQuery{Filter: ListFilter{Country: "jp"}}, want: []string{"Toyota"}},
		{name: "desc", query: ListQuery{Sort: ListSort{Field: SortByName, Order: domain.SortDesc}}, want: []string{"Toyota", "BMW", "Audi"}},
		{name: "unknown sort", query: ListQuery{Sort: ListSort{Field: "popularity", Order: domain.SortDesc}}, want: []string{"Audi", "BMW", "Toyota"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.List(ctx, tt.query)
			require.NoError(t, err)

			var names []string
			for _, m := range result.Items {
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.EqualValues(t, len(tt.want), result.Pagination.Total)
		})
	}
}

func TestListQuery_Normalize(t *testing.T) {
	q := ListQuery{Page: domain.PageRequest{Page: -3, Limit: 500}, Sort: ListSort{Field: "weird", Order: "desc"}}.Normalize()

	assert.Equal(t, StatusAll, q.Filter.Status)
	assert.Equal(t, SortByName, q.Sort.Field)
	assert.Equal(t, domain.SortAsc, q.Sort.Order)
	assert.Equal(t, 1, q.Page.Page)
	assert.Equal(t, MaxLimit, q.Page.Limit)

	q = ListQuery{}.Normalize()
	assert.Equal(t, DefaultLimit, q.Page.Limit)
}

func TestService_Search_ClampsLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	for i := range 60 {
		mustCreate(t, svc, "Maker "+string(rune('A'+i%26))+strings.Repeat("x", i))
	}

	items, err := svc.Search(context.Background(), "maker", 500)
	require.NoError(t, err)
	assert.Len(t, items, MaxSearchLimit)

	items, err = svc.Search(context.Background(), "maker", 0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultSearchLimit)
}

func TestService_Update_OnlySuppliedFields(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{Name: "Tesla", DisplayName: "Tesla Inc.", CountryCode: strPtr("US")}, "")
	require.NoError(t, err)

	updated, err := svc.UpdateByPublicID(ctx, created.PublicID.String(), UpdateInput{Description: strPtr("new")}, "")
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "new", *updated.Description)
	assert.Equal(t, "Tesla Inc.", updated.DisplayName)
	assert.Equal(t, "US", *updated.CountryCode)
	assert.Equal(t, "tesla", updated.Slug)
	assert.Equal(t, EventUpdated, rec.events[len(rec.events)-1].EventType)
	assert.Equal(t, map[string]any{"description": "new"}, rec.events[len(rec.events)-1].Payload)
}

func TestService_Update_BlankFieldsDropped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{Name: "Tesla", DisplayName: "Tesla Inc.", Description: strPtr("old")}, "")
	require.NoError(t, err)

	updated, err := svc.UpdateByPublicID(ctx, created.PublicID.String(), UpdateInput{DisplayName: strPtr("   "), Description: strPtr("")}, "")
	require.NoError(t, err)

	assert.Equal(t, "Tesla Inc.", updated.DisplayName)
	assert.Equal(t, "old", *updated.Description)
}

func TestService_Update_InvalidCountry(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := mustCreate(t, svc, "Tesla")

	_, err := svc.UpdateByPublicID(context.Background(), created.PublicID.String(), UpdateInput{CountryCode: strPtr("usa")}, "")

	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestService_Update_NotFound(t *testing.T) {
	svc, _, rec := newTestService(t)

	m, err := svc.UpdateByPublicID(context.Background(), id.New().String(), UpdateInput{Description: strPtr("x")}, "")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = svc.UpdateByPublicID(context.Background(), "not-a-uuid", UpdateInput{}, "")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, rec.events)
}

func TestService_GetByPublicID(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := mustCreate(t, svc, "Tesla")

	m, err := svc.GetByPublicID(context.Background(), created.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, "Tesla", m.Name)

	m, err = svc.GetByPublicID(context.Background(), "12")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = svc.GetBySlug(context.Background(), "tesla")
	require.NoError(t, err)
	assert.Equal(t, created.PublicID, m.PublicID)
}

func TestService_Verify_Unconditional(t *testing.T) {
	svc, _, rec := newTestService(t)
	created := mustCreate(t, svc, "Tesla")

	for range 2 {
		m, err := svc.Verify(context.Background(), created.PublicID.String(), "")
		require.NoError(t, err)
		assert.True(t, m.IsVerified)
	}
	assert.Equal(t, EventVerified, rec.events[len(rec.events)-1].EventType)
	assert.Len(t, rec.events, 3)
}

func TestService_DeletePolicy(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()
	withModels := mustCreate(t, svc, "Tesla")
	without := mustCreate(t, svc, "Rivian")
	repo.models[withModels.ID] = 2

	result, err := svc.DeleteByPublicID(ctx, withModels.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: true, Soft: true}, result)
	still, _ := svc.GetByPublicID(ctx, withModels.PublicID.String())
	require.NotNil(t, still)
	assert.False(t, still.IsActive)

	result, err = svc.DeleteByPublicID(ctx, without.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: true, Soft: false}, result)
	gone, _ := svc.GetByPublicID(ctx, without.PublicID.String())
	assert.Nil(t, gone)

	events := len(rec.events)
	result, err = svc.DeleteByPublicID(ctx, id.New().String())
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.False(t, result.Soft)

	result, err = svc.DeleteByPublicID(ctx, "bogus")
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Len(t, rec.events, events, "missing rows emit no events")
}

func TestService_BatchUpdateStatus_PartialSuccess(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := mustCreate(t, svc, "Audi")
	b := mustCreate(t, svc, "BMW")
	c := mustCreate(t, svc, "Citroen")
	repo.failSetOn[b.ID] = errors.New("connection reset")
	missing := id.New().String()

	result := svc.BatchUpdateStatus(context.Background(),
		[]string{a.PublicID.String(), b.PublicID.String(), missing, c.PublicID.String()}, false, "")

	assert.Equal(t, []string{a.PublicID.String(), c.PublicID.String()}, result.Success)
	assert.Equal(t, []string{b.PublicID.String(), missing}, result.Failed)

	got, _ := svc.GetByPublicID(context.Background(), c.PublicID.String())
	assert.False(t, got.IsActive)
}

func TestService_ToggleStatus_ReturnsFullRow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	m := mustCreate(t, svc, "Audi")
	repo.models[m.ID] = 4
	actor := id.New().String()

	got, err := svc.ToggleStatus(context.Background(), m.PublicID.String(), false, actor)
	require.NoError(t, err)

	assert.False(t, got.IsActive)
	assert.EqualValues(t, 4, got.ModelCount)
	assert.Equal(t, actor, *got.UpdatedBy)
}

func TestService_History_Unavailable(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.History(context.Background(), id.New().String(), 10)

	require.Error(t, err)
	assert.Equal(t, apperror.CodeUnavailable, asAppError(t, err).Code)
}

func asAppError(t *testing.T, err error) *apperror.AppError {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr
}
