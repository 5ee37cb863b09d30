package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Users is the slice of the identity store this module needs. Find methods
// return (nil, nil) when no user matches.
type Users interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	// UpdateSerialNumber rotates the user's invalidation nonce, voiding all
	// previously issued tokens. The identity subsystem calls this on
	// password, role, or status changes.
	UpdateSerialNumber(ctx context.Context, id int64, serialNumber string) error
}

type userStore struct {
	db *bun.DB
}

var _ Users = (*userStore)(nil)

// NewUserStore returns the bun-backed Users store.
func NewUserStore(db *bun.DB) Users {
	return &userStore{db: db}
}

func (s *userStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.findUser(ctx, "?TableAlias.id = ?", id)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findUser(ctx, "?TableAlias.username = ?", username)
}

func (s *userStore) findUser(ctx context.Context, where string, arg any) (*User, error) {
	record := &User{}
	err := s.db.NewSelect().Model(record).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}
	return record, nil
}

func (s *userStore) Create(ctx context.Context, user *User) (*User, error) {
	if user.SerialNumber == "" {
		user.SerialNumber = GenerateSerialNumber()
	}

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return user, nil
}

func (s *userStore) UpdateSerialNumber(ctx context.Context, id int64, serialNumber string) error {
	res, err := s.db.NewUpdate().
		Model((*User)(nil)).
		Set("serial_number = ?", serialNumber).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update serial number")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return goerrors.New("user not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"id": id})
	}

	return nil
}
