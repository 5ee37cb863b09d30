package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/fanray/fanray"
)

const testPassword = "s3cret-pass"

type httpFixture struct {
	app        *fiber.App
	controller *TokenController
	db         *bun.DB
	user       *User
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()

	db := setupAuthDB(t)
	users := NewUserStore(db)
	store := NewTokenStore(db)
	cfg := testConfig()
	logger := fanray.DefaultLogger()

	hash, err := HashPassword(testPassword)
	require.NoError(t, err)

	user, err := users.Create(context.Background(), &User{
		Username:     "ray",
		DisplayName:  "Ray",
		PasswordHash: hash,
		Roles:        []string{"Administrator"},
	})
	require.NoError(t, err)

	service := NewTokenService(store, cfg, logger)
	validator := NewContextValidator(users, store, logger)
	controller := NewTokenController(service, users, validator, cfg, logger)

	app := fiber.New()
	RegisterTokenRoutes(app, controller)
	app.Get("/me", controller.RequireAuth(), func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"username": claims.Username})
	})

	return &httpFixture{app: app, controller: controller, db: db, user: user}
}

func (f *httpFixture) postJSON(t *testing.T, path string, body any, header map[string]string) *http.Response {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	res, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func (f *httpFixture) login(t *testing.T) TokenPairResponse {
	t.Helper()

	res := f.postJSON(t, "/login", LoginRequest{Username: "ray", Password: testPassword}, nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var pair TokenPairResponse
	decodeBody(t, res, &pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func TestLoginEndpoint(t *testing.T) {
	f := newHTTPFixture(t)

	t.Run("valid credentials return a pair", func(t *testing.T) {
		pair := f.login(t)

		claims, err := ParseAccessToken(pair.AccessToken, testConfig())
		require.NoError(t, err)
		assert.Equal(t, "ray", claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		res := f.postJSON(t, "/login", LoginRequest{Username: "ray", Password: "nope"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		res := f.postJSON(t, "/login", LoginRequest{Username: "ghost", Password: testPassword}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		res := f.postJSON(t, "/login", LoginRequest{Username: "ray"}, nil)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})
}

func TestRefreshTokenEndpoint(t *testing.T) {
	f := newHTTPFixture(t)
	pair := f.login(t)

	t.Run("valid refresh rotates the pair", func(t *testing.T) {
		res := f.postJSON(t, "/refresh-token", RefreshTokenRequest{RefreshToken: pair.RefreshToken}, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		var next TokenPairResponse
		decodeBody(t, res, &next)
		assert.NotEqual(t, pair.AccessToken, next.AccessToken)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		// the spent refresh token is gone
		res = f.postJSON(t, "/refresh-token", RefreshTokenRequest{RefreshToken: pair.RefreshToken}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		res := f.postJSON(t, "/refresh-token", fiber.Map{}, nil)
		require.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		var body map[string]string
		decodeBody(t, res, &body)
		assert.Equal(t, "refreshToken is not set", body["error"])
	})

	t.Run("unknown token", func(t *testing.T) {
		res := f.postJSON(t, "/refresh-token", RefreshTokenRequest{RefreshToken: "never-issued"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}

func TestRequireAuthMiddleware(t *testing.T) {
	f := newHTTPFixture(t)
	pair := f.login(t)

	get := func(authorization string) *http.Response {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if authorization != "" {
			req.Header.Set(fiber.HeaderAuthorization, authorization)
		}
		res, err := f.app.Test(req, -1)
		require.NoError(t, err)
		return res
	}

	t.Run("valid bearer token passes", func(t *testing.T) {
		res := get("Bearer " + pair.AccessToken)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		var body map[string]string
		decodeBody(t, res, &body)
		assert.Equal(t, "ray", body["username"])
	})

	t.Run("no header", func(t *testing.T) {
		assert.Equal(t, fiber.StatusUnauthorized, get("").StatusCode)
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.Equal(t, fiber.StatusUnauthorized, get("Token abc").StatusCode)
	})

	t.Run("tampered token", func(t *testing.T) {
		assert.Equal(t, fiber.StatusUnauthorized, get("Bearer "+pair.AccessToken+"x").StatusCode)
	})

	t.Run("token rejected after reissue", func(t *testing.T) {
		next := f.login(t)
		assert.Equal(t, fiber.StatusUnauthorized, get("Bearer "+pair.AccessToken).StatusCode)
		assert.Equal(t, fiber.StatusOK, get("Bearer "+next.AccessToken).StatusCode)
		pair = next
	})
}

func TestLogoutEndpoint(t *testing.T) {
	f := newHTTPFixture(t)
	pair := f.login(t)

	res := f.postJSON(t, "/logout", fiber.Map{}, map[string]string{
		fiber.HeaderAuthorization: "Bearer " + pair.AccessToken,
	})
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	// revoked pair no longer authenticates or refreshes
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	meRes, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, meRes.StatusCode)

	refreshRes := f.postJSON(t, "/refresh-token", RefreshTokenRequest{RefreshToken: pair.RefreshToken}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, refreshRes.StatusCode)

	t.Run("logout without a token still succeeds", func(t *testing.T) {
		res := f.postJSON(t, "/logout", fiber.Map{}, nil)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	})
}

func TestBcryptHelpers(t *testing.T) {
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash(testPassword, hash))
	assert.ErrorIs(t, ComparePasswordAndHash("wrong", hash), ErrMismatchedHashAndPassword)

	_, err = HashPassword("")
	assert.ErrorIs(t, err, ErrNoEmptyString)
}
