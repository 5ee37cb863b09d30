package auth

import (
	"context"
	"time"

	"github.com/fanray/fanray"
)

// ContextValidator decides whether an already structurally valid access
// token (signature and expiry checked) is still acceptable given current
// user state and the token store. This is the stateful half of the design:
// a signed, unexpired token is still rejected when the serial number moved
// on or the digest was purged.
type ContextValidator struct {
	users  Users
	store  Tokens
	logger fanray.Logger
	now    func() time.Time
}

// NewContextValidator creates a ContextValidator. A nil logger falls back to
// the stdout default.
func NewContextValidator(users Users, store Tokens, logger fanray.Logger) *ContextValidator {
	if logger == nil {
		logger = fanray.DefaultLogger()
	}
	return &ContextValidator{
		users:  users,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Validate runs the ordered decision sequence; the first failing check wins.
// rawToken is the exact token string presented by the client, needed to
// recompute the digest for the store lookup.
func (v *ContextValidator) Validate(ctx context.Context, rawToken string, claims *AccessClaims) error {
	if claims == nil || claims.Empty() {
		return ErrTokenNoClaims
	}

	if claims.SerialNumber == "" {
		return ErrTokenNoSerial
	}

	userID, err := claims.UserID()
	if err != nil {
		return ErrTokenNoUserID
	}

	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if user == nil || user.SerialNumber != claims.SerialNumber {
		// password/roles/status changed since issuance
		return ErrTokenStale
	}

	record, err := v.store.FindAccessToken(ctx, fanray.Sha256Hex(rawToken), userID)
	if err != nil {
		return err
	}

	if record == nil || record.Expired(v.now()) {
		return ErrTokenNotInStore
	}

	return nil
}
