// Package auth implements Fanray's token engine: OAuth2-style access/refresh
// token pairs signed with HS256, persisted as SHA-256 digests, and validated
// statefully against the user's current serial number and the token store.
package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LoginProvider scopes every token record issued by this module, so other
// issuers can coexist in the same table.
const LoginProvider = "Fanray"

// Token record names. For a given user at most one live record of each name
// exists at any time.
const (
	TokenNameAccess  = "AccessToken"
	TokenNameRefresh = "RefreshToken"
)

// User is the identity principal. It is owned by the identity subsystem;
// the token engine reads it and only touches SerialNumber through
// Users.UpdateSerialNumber.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username     string     `bun:"username,notnull,unique" json:"username,omitempty"`
	DisplayName  string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	PasswordHash string     `bun:"password_hash" json:"-"`
	SerialNumber string     `bun:"serial_number" json:"-"`
	Roles        []string   `bun:"roles,type:jsonb" json:"roles,omitempty"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// GenerateSerialNumber returns a fresh per-user invalidation nonce. The
// identity subsystem regenerates it whenever password, roles, or status
// change, which voids every previously issued token for that user.
func GenerateSerialNumber() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// UserToken is one half of a persisted token pair. Value holds the SHA-256
// hex digest of the raw token; raw values are never stored.
type UserToken struct {
	bun.BaseModel `bun:"table:user_tokens,alias:utk"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Value         string    `bun:"value,notnull" json:"-"`
	LoginProvider string    `bun:"login_provider,notnull" json:"login_provider"`
	ExpiresOn     time.Time `bun:"expires_on,notnull" json:"expires_on"`
}

// Expired reports whether the record is past its expiry at the given time.
func (t *UserToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresOn)
}
