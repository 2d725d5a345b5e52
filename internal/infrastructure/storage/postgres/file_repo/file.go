// Package file_repo stores upload metadata in the file table.
package file_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/domain/files"
	"partscatalog/internal/infrastructure/storage/postgres"
)

const fileTable = "file"

var fileColumns = postgres.ExtractDBColumns[files.File]()

// FileRepo implements files.Repository.
type FileRepo struct {
	txManager *postgres.TxManager
}

var _ files.Repository = (*FileRepo)(nil)

// NewFileRepo creates a new file repository.
func NewFileRepo(txManager *postgres.TxManager) *FileRepo {
	return &FileRepo{txManager: txManager}
}

func (r *FileRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *FileRepo) insertQuery(f *files.File) squirrel.InsertBuilder {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return r.builder().
		Insert(fileTable).
		Columns("public_id", "file_name", "original_name", "mime_type", "file_size",
			"file_path", "bucket", "provider", "uploaded_by", "tags").
		Values(f.PublicID, f.FileName, f.OriginalName, f.MimeType, f.FileSize,
			f.FilePath, f.Bucket, f.Provider, f.UploadedBy, tags).
		Suffix("RETURNING id, created_at, updated_at")
}

// Create inserts the row and fills the generated columns.
func (r *FileRepo) Create(ctx context.Context, f *files.File) error {
	sql, args, err := r.insertQuery(f).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return fmt.Errorf("insert %s: %w", fileTable, err)
	}
	return nil
}

func (r *FileRepo) selectByPublicID(publicID string) squirrel.SelectBuilder {
	return r.builder().
		Select(fileColumns...).
		From(fileTable).
		Where(squirrel.Eq{"public_id": publicID})
}

// FindByPublicID returns (nil, nil) when no row matches.
func (r *FileRepo) FindByPublicID(ctx context.Context, publicID string) (*files.File, error) {
	sql, args, err := r.selectByPublicID(publicID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var f files.File
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &f, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select %s: %w", fileTable, err)
	}
	return &f, nil
}

// DeleteByPublicID removes the row. Rows still referenced elsewhere, such
// as manufacturer logos, yield a conflict.
func (r *FileRepo) DeleteByPublicID(ctx context.Context, publicID string) (bool, error) {
	sql, args, err := r.builder().
		Delete(fileTable).
		Where(squirrel.Eq{"public_id": publicID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if pgErr, ok := postgres.AsPgError(err, postgres.ForeignKeyViolation); ok {
			table := strings.TrimSpace(pgErr.TableName)
			return false, apperror.NewConflict("File is still in use").
				WithDetail("referencedBy", table).
				WithCause(err)
		}
		return false, fmt.Errorf("delete %s: %w", fileTable, err)
	}
	return tag.RowsAffected() > 0, nil
}
