// Package user_repo stores accounts in the "user" table.
package user_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/domain/users"
	"partscatalog/internal/infrastructure/storage/postgres"
)

// "user" is reserved in PostgreSQL.
const userTable = `"user"`

var userColumns = postgres.ExtractDBColumns[users.User]()

// UserRepo implements users.Repository.
type UserRepo struct {
	txManager *postgres.TxManager
}

var _ users.Repository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *postgres.TxManager) *UserRepo {
	return &UserRepo{txManager: txManager}
}

func (r *UserRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *UserRepo) insertQuery(u *users.User) squirrel.InsertBuilder {
	return r.builder().
		Insert(userTable).
		Columns("public_id", "name", "email", "password_hash", "is_active").
		Values(u.PublicID, u.Name, u.Email, u.PasswordHash, u.IsActive).
		Suffix("RETURNING id, created_at, updated_at")
}

// Create inserts the user. A taken email yields a duplicate error.
func (r *UserRepo) Create(ctx context.Context, u *users.User) error {
	sql, args, err := r.insertQuery(u).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if _, ok := postgres.AsPgError(err, postgres.UniqueViolation); ok {
			return apperror.NewDuplicate(users.EntityName, "email", u.Email).WithCause(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) selectWhere(pred squirrel.Sqlizer) squirrel.SelectBuilder {
	return r.builder().Select(userColumns...).From(userTable).Where(pred)
}

func (r *UserRepo) findOne(ctx context.Context, q squirrel.SelectBuilder) (*users.User, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var u users.User
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// FindByPublicID returns (nil, nil) when no row matches.
func (r *UserRepo) FindByPublicID(ctx context.Context, publicID string) (*users.User, error) {
	return r.findOne(ctx, r.selectWhere(squirrel.Eq{"public_id": publicID}))
}

// FindByEmail matches case-insensitively; emails are stored lowercased.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.findOne(ctx, r.selectWhere(emailEquals(email)))
}

func emailEquals(email string) squirrel.Sqlizer {
	return squirrel.Expr("lower(email) = lower(?)", email)
}
