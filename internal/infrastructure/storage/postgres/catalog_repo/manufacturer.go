package catalog_repo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"golang.org/x/sync/errgroup"

	"partscatalog/internal/core/id"
	"partscatalog/internal/domain"
	"partscatalog/internal/domain/catalogs/manufacturer"
	"partscatalog/internal/infrastructure/storage/postgres"
)

const manufacturerTable = "manufacturer"

// manufacturerColumns are the non-aggregate columns of the data query;
// the same list is the GROUP BY.
var manufacturerColumns = []string{
	"m.id", "m.public_id", "m.name", "m.display_name", "m.slug",
	"m.logo_image_id", "m.country_code", "m.description",
	"m.is_active", "m.is_verified",
	"m.created_at", "m.updated_at", "m.created_by", "m.updated_by",
}

const modelCountExpr = "COUNT(mo.id)"

// ManufacturerRepo implements manufacturer.Repository.
type ManufacturerRepo struct {
	baseRepo
}

var _ manufacturer.Repository = (*ManufacturerRepo)(nil)

// NewManufacturerRepo creates a new manufacturer repository.
func NewManufacturerRepo(txManager *postgres.TxManager) *ManufacturerRepo {
	return &ManufacturerRepo{baseRepo: newBaseRepo(txManager, manufacturerTable)}
}

// selectWithAggregates joins models for the count and the logo file for its public id.
func (r *ManufacturerRepo) selectWithAggregates() squirrel.SelectBuilder {
	cols := append(slices.Clone(manufacturerColumns),
		"f.public_id AS logo_image_public_id",
		modelCountExpr+" AS model_count",
	)
	return r.Builder().
		Select(cols...).
		From("manufacturer m").
		LeftJoin("model mo ON mo.manufacturer_id = m.id").
		LeftJoin("file f ON f.id = m.logo_image_id").
		GroupBy(append(slices.Clone(manufacturerColumns), "f.public_id")...)
}

// applyManufacturerFilter adds the conjunctive list predicates. Both the
// data and the count query alias the table as m.
func applyManufacturerFilter(q squirrel.SelectBuilder, f manufacturer.ListFilter) squirrel.SelectBuilder {
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"m.name": pattern},
			squirrel.ILike{"m.display_name": pattern},
		})
	}

	switch f.Status {
	case manufacturer.StatusActive:
		q = q.Where(squirrel.Eq{"m.is_active": true})
	case manufacturer.StatusInactive:
		q = q.Where(squirrel.Eq{"m.is_active": false})
	}

	if f.IsActive != nil {
		q = q.Where(squirrel.Eq{"m.is_active": *f.IsActive})
	}
	if f.Verified != nil {
		q = q.Where(squirrel.Eq{"m.is_verified": *f.Verified})
	}
	if f.Country != "" {
		q = q.Where(squirrel.Eq{"m.country_code": f.Country})
	}
	return q
}

// manufacturerOrderBy maps a sort to SQL. Unknown keys sort by name ascending.
func manufacturerOrderBy(s manufacturer.ListSort) string {
	dir := "ASC"
	if s.Order == domain.SortDesc {
		dir = "DESC"
	}

	switch s.Field {
	case manufacturer.SortByName:
		return "m.name " + dir
	case manufacturer.SortByCreatedAt:
		return "m.created_at " + dir
	case manufacturer.SortByModelCount:
		return modelCountExpr + " " + dir
	default:
		return "m.name ASC"
	}
}

// listQueries builds the page query and the matching count query.
func (r *ManufacturerRepo) listQueries(q manufacturer.ListQuery) (data, count squirrel.SelectBuilder) {
	data = applyManufacturerFilter(r.selectWithAggregates(), q.Filter).
		OrderBy(manufacturerOrderBy(q.Sort), "m.id ASC").
		Limit(uint64(q.Page.Limit)).
		Offset(uint64(q.Page.Offset()))

	count = applyManufacturerFilter(
		r.Builder().Select("COUNT(*)").From("manufacturer m"),
		q.Filter,
	)
	return data, count
}

// List runs the page and count queries concurrently on separate pool
// connections. Inside a transaction they run one after the other because a
// transaction owns a single connection.
func (r *ManufacturerRepo) List(ctx context.Context, q manufacturer.ListQuery) (*domain.ListResult[*manufacturer.Manufacturer], error) {
	start := time.Now()

	dataQ, countQ := r.listQueries(q)
	dataSQL, dataArgs, err := dataQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	var (
		items []*manufacturer.Manufacturer
		total int64
	)
	fetch := func(ctx context.Context) error {
		return pgxscan.Select(ctx, r.querier(ctx), &items, dataSQL, dataArgs...)
	}
	countRows := func(ctx context.Context) error {
		return r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total)
	}

	if r.txManager.InTransaction(ctx) {
		if err = fetch(ctx); err == nil {
			err = countRows(ctx)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return fetch(gctx) })
		g.Go(func() error { return countRows(gctx) })
		err = g.Wait()
	}
	if err != nil {
		return nil, fmt.Errorf("list manufacturers: %w", r.observe(ctx, "List", "select", start, err))
	}

	if items == nil {
		items = []*manufacturer.Manufacturer{}
	}
	return &domain.ListResult[*manufacturer.Manufacturer]{
		Items:      items,
		Pagination: domain.NewPagination(q.Page, total),
	}, nil
}

func (r *ManufacturerRepo) findOne(ctx context.Context, method string, where squirrel.Sqlizer) (*manufacturer.Manufacturer, error) {
	start := time.Now()
	var m manufacturer.Manufacturer
	found, err := r.getOne(ctx, &m, r.selectWithAggregates().Where(where))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, r.observe(ctx, method, "select", start, err))
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

// FindByPublicID returns (nil, nil) when not found.
func (r *ManufacturerRepo) FindByPublicID(ctx context.Context, publicID string) (*manufacturer.Manufacturer, error) {
	if !id.Valid(publicID) {
		return nil, nil
	}
	return r.findOne(ctx, "FindByPublicID", squirrel.Eq{"m.public_id": publicID})
}

// FindBySlug returns (nil, nil) when not found.
func (r *ManufacturerRepo) FindBySlug(ctx context.Context, slug string) (*manufacturer.Manufacturer, error) {
	return r.findOne(ctx, "FindBySlug", squirrel.Eq{"m.slug": slug})
}

// FindByName returns (nil, nil) when not found.
func (r *ManufacturerRepo) FindByName(ctx context.Context, name string) (*manufacturer.Manufacturer, error) {
	return r.findOne(ctx, "FindByName", squirrel.Eq{"m.name": name})
}

// logoSubquery resolves a file public id inside the write statement.
func logoSubquery(publicID string) squirrel.Sqlizer {
	return squirrel.Expr("(SELECT id FROM file WHERE public_id = ?)", publicID)
}

func (r *ManufacturerRepo) insertQuery(m *manufacturer.Manufacturer) squirrel.InsertBuilder {
	values := map[string]any{
		"public_id":    m.PublicID,
		"name":         m.Name,
		"display_name": m.DisplayName,
		"slug":         m.Slug,
		"country_code": m.CountryCode,
		"description":  m.Description,
		"is_active":    m.IsActive,
		"is_verified":  m.IsVerified,
		"created_by":   m.CreatedBy,
		"updated_by":   m.UpdatedBy,
	}
	if m.LogoImagePublicID != nil {
		values["logo_image_id"] = logoSubquery(*m.LogoImagePublicID)
	}
	return r.Builder().
		Insert(manufacturerTable).
		SetMap(values).
		Suffix("RETURNING id, logo_image_id, created_at, updated_at")
}

// Create inserts m. A name or slug collision becomes a duplicate error and
// an unknown logo id a validation error.
func (r *ManufacturerRepo) Create(ctx context.Context, m *manufacturer.Manufacturer) error {
	start := time.Now()

	sql, args, err := r.insertQuery(m).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&m.ID, &m.LogoImageID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if mapped := duplicateError(err, m.Name, m.Slug); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert %s: %w", manufacturerTable, r.observe(ctx, "Create", "insert", start, err))
	}

	if m.LogoImagePublicID != nil && m.LogoImageID == nil {
		return manufacturer.ErrLogoNotFound(*m.LogoImagePublicID)
	}
	return nil
}

func (r *ManufacturerRepo) updateQuery(publicID string, c manufacturer.Changes) squirrel.UpdateBuilder {
	set := map[string]any{"updated_at": squirrel.Expr("NOW()")}
	if c.DisplayName != nil {
		set["display_name"] = *c.DisplayName
	}
	if c.LogoImagePublicID != nil {
		set["logo_image_id"] = logoSubquery(*c.LogoImagePublicID)
	}
	if c.CountryCode != nil {
		set["country_code"] = *c.CountryCode
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.IsActive != nil {
		set["is_active"] = *c.IsActive
	}
	if c.IsVerified != nil {
		set["is_verified"] = *c.IsVerified
	}
	if c.UpdatedBy != nil {
		set["updated_by"] = *c.UpdatedBy
	}

	return r.Builder().
		Update(manufacturerTable).
		SetMap(set).
		Where(squirrel.Eq{"public_id": publicID}).
		Suffix("RETURNING logo_image_id")
}

// UpdateByPublicID applies the supplied changes. Returns false when no row matches.
func (r *ManufacturerRepo) UpdateByPublicID(ctx context.Context, publicID string, c manufacturer.Changes) (bool, error) {
	if !id.Valid(publicID) {
		return false, nil
	}
	start := time.Now()

	sql, args, err := r.updateQuery(publicID, c).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	var logoID *int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&logoID); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("update %s: %w", manufacturerTable, r.observe(ctx, "UpdateByPublicID", "update", start, err))
	}

	if c.LogoImagePublicID != nil && logoID == nil {
		return false, manufacturer.ErrLogoNotFound(*c.LogoImagePublicID)
	}
	return true, nil
}

// SetActive flips the active flag by internal id.
func (r *ManufacturerRepo) SetActive(ctx context.Context, internalID int64, isActive bool, updatedBy *string) (time.Time, bool, error) {
	start := time.Now()

	q := r.Builder().
		Update(manufacturerTable).
		Set("is_active", isActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": internalID}).
		Suffix("RETURNING updated_at")
	if updatedBy != nil {
		q = q.Set("updated_by", *updatedBy)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build status update: %w", err)
	}

	var updatedAt time.Time
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&updatedAt); err != nil {
		if isNoRows(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("set active: %w", r.observe(ctx, "SetActive", "update", start, err))
	}
	return updatedAt, true, nil
}

// lockQuery selects the internal id and locks the row for the delete policy.
func (r *ManufacturerRepo) lockQuery(publicID string) squirrel.SelectBuilder {
	return r.Builder().
		Select("id").
		From(manufacturerTable).
		Where(squirrel.Eq{"public_id": publicID}).
		Suffix("FOR UPDATE")
}

// deletePolicyQueries builds the model count and both delete branches.
func (r *ManufacturerRepo) deletePolicyQueries(internalID int64) (countModels squirrel.SelectBuilder, soft squirrel.UpdateBuilder, hard squirrel.DeleteBuilder) {
	countModels = r.Builder().
		Select("COUNT(*)").
		From("model").
		Where(squirrel.Eq{"manufacturer_id": internalID})
	soft = r.Builder().
		Update(manufacturerTable).
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": internalID})
	hard = r.Builder().
		Delete(manufacturerTable).
		Where(squirrel.Eq{"id": internalID})
	return countModels, soft, hard
}

// DeleteByPublicID locks the row, counts its models and then soft-deletes
// (models exist) or removes it. Everything runs in one transaction so a
// model inserted concurrently cannot be orphaned by the hard delete.
func (r *ManufacturerRepo) DeleteByPublicID(ctx context.Context, publicID string) (manufacturer.DeleteResult, error) {
	if !id.Valid(publicID) {
		return manufacturer.DeleteResult{Reason: "not found"}, nil
	}

	var result manufacturer.DeleteResult
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		start := time.Now()
		q := r.querier(ctx)

		sql, args, err := r.lockQuery(publicID).ToSql()
		if err != nil {
			return err
		}
		var internalID int64
		if err := q.QueryRow(ctx, sql, args...).Scan(&internalID); err != nil {
			if isNoRows(err) {
				result = manufacturer.DeleteResult{Reason: "not found"}
				return nil
			}
			return r.observe(ctx, "DeleteByPublicID", "lock", start, err)
		}

		countQ, softQ, hardQ := r.deletePolicyQueries(internalID)
		sql, args, err = countQ.ToSql()
		if err != nil {
			return err
		}
		var models int64
		if err := q.QueryRow(ctx, sql, args...).Scan(&models); err != nil {
			return r.observe(ctx, "DeleteByPublicID", "count_models", start, err)
		}

		if models > 0 {
			sql, args, err = softQ.ToSql()
			if err != nil {
				return err
			}
			tag, err := q.Exec(ctx, sql, args...)
			if err != nil {
				return r.observe(ctx, "DeleteByPublicID", "soft_delete", start, err)
			}
			result = manufacturer.DeleteResult{
				Deleted: tag.RowsAffected() > 0,
				Soft:    true,
				Reason:  fmt.Sprintf("manufacturer has %d models", models),
			}
			return nil
		}

		sql, args, err = hardQ.ToSql()
		if err != nil {
			return err
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return conflictError(r.observe(ctx, "DeleteByPublicID", "hard_delete", start, err), manufacturer.EntityName)
		}
		result = manufacturer.DeleteResult{Deleted: tag.RowsAffected() > 0}
		return nil
	})
	if err != nil {
		return manufacturer.DeleteResult{}, fmt.Errorf("delete %s: %w", manufacturerTable, err)
	}
	return result, nil
}

// duplicateError maps a unique violation on name or slug to the domain error.
func duplicateError(err error, name, slug string) error {
	pgErr, ok := postgres.AsPgError(err, postgres.UniqueViolation)
	if !ok {
		return nil
	}
	if constraintMentions(pgErr, "slug") {
		return manufacturer.ErrDuplicateName(name).
			WithDetail("field", "slug").
			WithDetail("slug", slug).
			WithCause(err)
	}
	return manufacturer.ErrDuplicateName(name).WithCause(err)
}
