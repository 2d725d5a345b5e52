// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/pkg/logger"
)

// baseRepo carries what every catalog repository needs: the transaction
// manager, the table name for log context and a dollar-placeholder builder.
type baseRepo struct {
	txManager *postgres.TxManager
	table     string
}

func newBaseRepo(txManager *postgres.TxManager, table string) baseRepo {
	return baseRepo{txManager: txManager, table: table}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r baseRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// querier returns the transaction in ctx or the pool.
func (r baseRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// observe logs a failed query with its method, table, operation and
// duration. The error is returned unchanged.
func (r baseRepo) observe(ctx context.Context, method, operation string, start time.Time, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	logger.Error(ctx, "database query failed",
		"method", method,
		"table", r.table,
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return err
}

// getOne scans a single row into dst. A missing row yields (false, nil).
func (r baseRepo) getOne(ctx context.Context, dst any, q squirrel.Sqlizer) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isNoRows reports whether a QueryRow scan found nothing.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// constraintMentions reports whether the violated constraint name contains part.
func constraintMentions(pgErr *pgconn.PgError, part string) bool {
	return strings.Contains(pgErr.ConstraintName, part)
}

// conflictError maps a foreign key violation to a 409.
func conflictError(err error, entity string) error {
	if pgErr, ok := postgres.AsPgError(err, postgres.ForeignKeyViolation); ok {
		return apperror.NewConflict(entity+" is referenced by other records").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return err
}
