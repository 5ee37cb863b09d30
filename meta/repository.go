package meta

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	textCodeMetaDuplicate = "META_DUPLICATE_KEY"
	textCodeMetaNotFound  = "META_NOT_FOUND"
)

// NewDuplicateKey builds the error returned when an insert violates the
// unique key constraint. It is the only error class in this module that
// callers retry.
func NewDuplicateKey(key string) *goerrors.Error {
	return goerrors.New("meta key already exists", goerrors.CategoryConflict).
		WithTextCode(textCodeMetaDuplicate).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"key": key})
}

// NewNotFound builds the error returned when no meta row matches the lookup.
func NewNotFound(metadata map[string]any) *goerrors.Error {
	return goerrors.New("meta record not found", goerrors.CategoryNotFound).
		WithTextCode(textCodeMetaNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(metadata)
}

// Repository is the CRUD contract over meta rows.
type Repository interface {
	Create(ctx context.Context, m *Meta) (*Meta, error)
	Get(ctx context.Context, id int64) (*Meta, error)
	GetByKey(ctx context.Context, key string, typ Type) (*Meta, error)
	Update(ctx context.Context, m *Meta) error
	Delete(ctx context.Context, id int64) error
}

type repo struct {
	db bun.IDB
}

var _ Repository = (*repo)(nil)

// NewRepository returns a bun-backed Repository.
func NewRepository(db bun.IDB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, m *Meta) (*Meta, error) {
	_, err := r.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewDuplicateKey(m.Key)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create meta record")
	}
	return m, nil
}

func (r *repo) Get(ctx context.Context, id int64) (*Meta, error) {
	m := &Meta{}
	err := r.db.NewSelect().Model(m).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound(map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get meta record")
	}
	return m, nil
}

func (r *repo) GetByKey(ctx context.Context, key string, typ Type) (*Meta, error) {
	m := &Meta{}
	err := r.db.NewSelect().Model(m).
		Where("?TableAlias.key = ?", key).
		Where("?TableAlias.type = ?", typ).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound(map[string]any{"key": key, "type": int(typ)})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get meta record by key")
	}
	return m, nil
}

func (r *repo) Update(ctx context.Context, m *Meta) error {
	res, err := r.db.NewUpdate().Model(m).
		Column("value").
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update meta record")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return NewNotFound(map[string]any{"id": m.ID})
	}

	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().Model((*Meta)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete meta record")
	}
	return nil
}

// IsDuplicate reports whether err represents a unique key collision,
// either the typed duplicate error or a raw driver error.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.TextCode == textCodeMetaDuplicate {
		return true
	}

	return isUniqueViolation(err)
}

// IsNotFound reports whether err represents a missing meta row.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	return errors.As(err, &rich) && rich.TextCode == textCodeMetaNotFound
}

// isUniqueViolation matches the constraint error text of the drivers we
// deploy on (sqlite, postgres, mysql).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
