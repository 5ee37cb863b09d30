package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Tokens persists hashed token pairs. All operations are scoped to
// LoginProvider. Find methods return (nil, nil) when no live record matches;
// absence is a decision for the caller, not an error.
type Tokens interface {
	// CreateTokens rotates the user's pair: it deletes every existing
	// record for the user and inserts the two digests, atomically. Two
	// concurrent logins therefore cannot both end up with live pairs.
	CreateTokens(ctx context.Context, user *User, accessDigest, refreshDigest string, accessExpiresOn, refreshExpiresOn time.Time) error
	FindAccessToken(ctx context.Context, digest string, userID int64) (*UserToken, error)
	FindRefreshToken(ctx context.Context, digest string) (*UserToken, error)
	DeleteTokensForUser(ctx context.Context, userID int64) error
	DeleteExpiredTokens(ctx context.Context) error
}

type tokenStore struct {
	db *bun.DB
}

var _ Tokens = (*tokenStore)(nil)

// NewTokenStore returns the bun-backed Tokens store.
func NewTokenStore(db *bun.DB) Tokens {
	return &tokenStore{db: db}
}

func (s *tokenStore) CreateTokens(ctx context.Context, user *User, accessDigest, refreshDigest string, accessExpiresOn, refreshExpiresOn time.Time) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*UserToken)(nil)).
			Where("user_id = ?", user.ID).
			Where("login_provider = ?", LoginProvider).
			Exec(ctx); err != nil {
			return err
		}

		records := []*UserToken{
			{
				UserID:        user.ID,
				Name:          TokenNameAccess,
				Value:         accessDigest,
				LoginProvider: LoginProvider,
				ExpiresOn:     accessExpiresOn,
			},
			{
				UserID:        user.ID,
				Name:          TokenNameRefresh,
				Value:         refreshDigest,
				LoginProvider: LoginProvider,
				ExpiresOn:     refreshExpiresOn,
			},
		}

		_, err := tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate token pair")
	}
	return nil
}

func (s *tokenStore) FindAccessToken(ctx context.Context, digest string, userID int64) (*UserToken, error) {
	return s.findToken(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name = ?", TokenNameAccess).
			Where("value = ?", digest).
			Where("user_id = ?", userID)
	})
}

func (s *tokenStore) FindRefreshToken(ctx context.Context, digest string) (*UserToken, error) {
	return s.findToken(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name = ?", TokenNameRefresh).
			Where("value = ?", digest)
	})
}

func (s *tokenStore) findToken(ctx context.Context, apply func(*bun.SelectQuery) *bun.SelectQuery) (*UserToken, error) {
	record := &UserToken{}
	q := s.db.NewSelect().Model(record).
		Where("login_provider = ?", LoginProvider)

	err := apply(q).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token record")
	}

	return record, nil
}

func (s *tokenStore) DeleteTokensForUser(ctx context.Context, userID int64) error {
	_, err := s.db.NewDelete().
		Model((*UserToken)(nil)).
		Where("user_id = ?", userID).
		Where("login_provider = ?", LoginProvider).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user tokens")
	}
	return nil
}

// DeleteExpiredTokens is the lazy maintenance sweep; callers invoke it
// opportunistically (logout), there is no background scheduler.
func (s *tokenStore) DeleteExpiredTokens(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*UserToken)(nil)).
		Where("expires_on < ?", time.Now()).
		Where("login_provider = ?", LoginProvider).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sweep expired tokens")
	}
	return nil
}
