package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes for the distinct rejection reasons. They are logged server-side
// and attached to errors; clients only ever see a generic unauthorized.
const (
	textCodeTokenNoClaims   = "TOKEN_NO_CLAIMS"
	textCodeTokenNoSerial   = "TOKEN_NO_SERIAL"
	textCodeTokenNoUserID   = "TOKEN_NO_USER_ID"
	textCodeTokenStale      = "TOKEN_STALE_SERIAL"
	textCodeTokenNotInStore = "TOKEN_NOT_IN_STORE"
	textCodeBadCredentials  = "BAD_CREDENTIALS"
)

// ErrTokenNoClaims rejects tokens carrying no claims at all.
var ErrTokenNoClaims = goerrors.New("this is not our issued token, it has no claims", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenNoClaims).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNoSerial rejects tokens without a serial number claim.
var ErrTokenNoSerial = goerrors.New("this is not our issued token, it has no serial", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenNoSerial).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNoUserID rejects tokens whose user-id claim is missing or not an
// integer.
var ErrTokenNoUserID = goerrors.New("this is not our issued token, it has no user-id", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenNoUserID).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenStale rejects tokens whose serial number no longer matches the
// user's current one: the account changed password, roles, or status since
// issuance.
var ErrTokenStale = goerrors.New("this token is expired, please login again", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenStale).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNotInStore rejects structurally valid tokens whose digest is absent
// from (or expired in) the token store, e.g. after logout or rotation.
var ErrTokenNotInStore = goerrors.New("this token is not in our database", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenNotInStore).
	WithCode(goerrors.CodeUnauthorized)

// ErrBadCredentials is returned on login with an unknown user or a wrong
// password. The two cases are deliberately indistinguishable.
var ErrBadCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(textCodeBadCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the typed bcrypt mismatch error.
var ErrMismatchedHashAndPassword = errors.New("mismatched password and hash")

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("password must not be an empty string")

// IsAuthError reports whether err belongs to the authentication failure
// taxonomy (surfaced to clients as a bare unauthorized).
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	return errors.As(err, &rich) && rich.Category == goerrors.CategoryAuth
}
