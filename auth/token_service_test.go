package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/fanray/fanray"
)

func testConfig() *TokenConfig {
	return &TokenConfig{
		SigningKey:          "test-signing-key-please-rotate",
		Issuer:              "http://localhost:5001",
		Audience:            []string{"http://localhost:5001"},
		AccessTokenMinutes:  20,
		RefreshTokenMinutes: 60,
	}
}

func newTestService(t *testing.T) (*TokenService, Tokens, *bun.DB) {
	t.Helper()
	db := setupAuthDB(t)
	store := NewTokenStore(db)
	return NewTokenService(store, testConfig(), fanray.DefaultLogger()), store, db
}

func TestCreateTokensMintsVerifiablePair(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newTestService(t)
	user := seedUser(t, db, "ray")

	accessToken, refreshToken, err := svc.CreateTokens(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	assert.NotContains(t, refreshToken, "-")

	claims, err := ParseAccessToken(accessToken, testConfig())
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "ray", claims.Username)
	assert.Equal(t, user.SerialNumber, claims.SerialNumber)
	assert.True(t, claims.HasRole("Administrator"))
	assert.False(t, claims.HasRole("Editor"))
	assert.NotEmpty(t, claims.RegisteredClaims.ID)

	t.Run("only digests are persisted", func(t *testing.T) {
		record, err := store.FindAccessToken(ctx, fanray.Sha256Hex(accessToken), user.ID)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.NotEqual(t, accessToken, record.Value)

		missing, err := store.FindAccessToken(ctx, accessToken, user.ID)
		require.NoError(t, err)
		assert.Nil(t, missing, "raw token must never match a stored value")
	})
}

func TestCreateTokensRotatesPreviousPair(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newTestService(t)
	user := seedUser(t, db, "ray")

	firstAccess, firstRefresh, err := svc.CreateTokens(ctx, user)
	require.NoError(t, err)

	_, _, err = svc.CreateTokens(ctx, user)
	require.NoError(t, err)

	stale, err := store.FindAccessToken(ctx, fanray.Sha256Hex(firstAccess), user.ID)
	require.NoError(t, err)
	assert.Nil(t, stale, "previous access token must stop resolving after reissue")

	record, err := svc.FindRefreshToken(ctx, firstRefresh)
	require.NoError(t, err)
	assert.Nil(t, record, "previous refresh token must stop resolving after reissue")
}

func TestFindRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newTestService(t)
	user := seedUser(t, db, "ray")

	_, refreshToken, err := svc.CreateTokens(ctx, user)
	require.NoError(t, err)

	t.Run("live token resolves", func(t *testing.T) {
		record, err := svc.FindRefreshToken(ctx, refreshToken)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, user.ID, record.UserID)
		assert.Equal(t, TokenNameRefresh, record.Name)
	})

	t.Run("unknown token is nil, nil", func(t *testing.T) {
		record, err := svc.FindRefreshToken(ctx, "never-issued")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("expired token is nil, nil", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		record, err := svc.FindRefreshToken(ctx, refreshToken)
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestParseAccessToken(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newTestService(t)
	user := seedUser(t, db, "ray")

	accessToken, _, err := svc.CreateTokens(ctx, user)
	require.NoError(t, err)

	t.Run("wrong signing key", func(t *testing.T) {
		cfg := testConfig()
		cfg.SigningKey = "some-other-key"
		_, err := ParseAccessToken(accessToken, cfg)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := testConfig()
		cfg.Issuer = "http://elsewhere"
		_, err := ParseAccessToken(accessToken, cfg)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ParseAccessToken("not.a.jwt", testConfig())
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		oldToken, _, err := svc.CreateTokens(ctx, user)
		require.NoError(t, err)

		_, err = ParseAccessToken(oldToken, testConfig())
		assert.Error(t, err)
	})
}
