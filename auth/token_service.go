package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fanray/fanray"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService mints signed access tokens and opaque refresh tokens, and
// orchestrates storage and rotation. Issuing a pair always invalidates the
// user's previous pair, which gives single-session-per-user semantics by
// construction rather than via a revocation list.
type TokenService struct {
	store  Tokens
	cfg    Config
	logger fanray.Logger
	now    func() time.Time
}

// NewTokenService creates a TokenService. A nil logger falls back to the
// stdout default.
func NewTokenService(store Tokens, cfg Config, logger fanray.Logger) *TokenService {
	if logger == nil {
		logger = fanray.DefaultLogger()
	}
	return &TokenService{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// CreateTokens mints a new access/refresh pair for user, deletes the user's
// prior token records, and persists the new digests, all within one store
// transaction. It returns the raw tokens; only their digests are persisted.
func (s *TokenService) CreateTokens(ctx context.Context, user *User) (accessToken, refreshToken string, err error) {
	now := s.now()
	accessExpiresOn := now.Add(time.Duration(s.cfg.GetAccessTokenMinutes()) * time.Minute)
	refreshExpiresOn := now.Add(time.Duration(s.cfg.GetRefreshTokenMinutes()) * time.Minute)

	accessToken, err = s.signAccessToken(user, now, accessExpiresOn)
	if err != nil {
		return "", "", err
	}

	// Opaque, unsigned, unstructured. Possession is the whole credential.
	refreshToken = strings.ReplaceAll(uuid.NewString(), "-", "")

	err = s.store.CreateTokens(ctx, user,
		fanray.Sha256Hex(accessToken),
		fanray.Sha256Hex(refreshToken),
		accessExpiresOn, refreshExpiresOn)
	if err != nil {
		return "", "", err
	}

	s.logger.Debug("issued token pair for user %d, access expires %s", user.ID, accessExpiresOn)

	return accessToken, refreshToken, nil
}

// FindRefreshToken resolves a raw refresh token to its live store record.
// It returns (nil, nil) when the digest is unknown or the record expired.
func (s *TokenService) FindRefreshToken(ctx context.Context, refreshToken string) (*UserToken, error) {
	record, err := s.store.FindRefreshToken(ctx, fanray.Sha256Hex(refreshToken))
	if err != nil {
		return nil, err
	}

	if record == nil || record.Expired(s.now()) {
		return nil, nil
	}

	return record, nil
}

// DeleteTokensForUser revokes the user's current pair.
func (s *TokenService) DeleteTokensForUser(ctx context.Context, userID int64) error {
	return s.store.DeleteTokensForUser(ctx, userID)
}

// DeleteExpiredTokens sweeps expired records; invoked opportunistically on
// logout.
func (s *TokenService) DeleteExpiredTokens(ctx context.Context) error {
	return s.store.DeleteExpiredTokens(ctx)
}

func (s *TokenService) signAccessToken(user *User, now, expiresOn time.Time) (string, error) {
	userID := strconv.FormatInt(user.ID, 10)

	var aud jwt.ClaimStrings
	if audience := s.cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.GetIssuer(),
			Subject:   userID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresOn),
		},
		UserData:     userID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		SerialNumber: user.SerialNumber,
		Roles:        append([]string(nil), user.Roles...),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.cfg.GetSigningKey()))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, nil
}

// ParseAccessToken verifies signature, issuer, audience, and time claims of
// a raw access token and returns its structured claims. It performs only the
// structural half of validation; ContextValidator covers the stateful half.
func ParseAccessToken(raw string, cfg Config) (*AccessClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if cfg.GetIssuer() != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(cfg.GetIssuer()))
	}
	if aud := cfg.GetAudience(); len(aud) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(aud...))
	}

	token, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized)
		}
		return []byte(cfg.GetSigningKey()), nil
	}, parserOptions...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, goerrors.New("unable to decode access token claims", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}
