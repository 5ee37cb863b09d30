package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set carried by every access token: registered
// claims (jti, iss, iat, nbf, exp, sub) plus the Fanray data claims. UserData
// duplicates the user id as a string claim used for store lookups, matching
// the wire format consumed by the admin client.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserData     string   `json:"user_data,omitempty"`
	Username     string   `json:"username,omitempty"`
	DisplayName  string   `json:"display_name,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// UserID parses the UserData claim as the integer user id.
func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.UserData, 10, 64)
}

// HasRole reports whether the token carries the given role claim.
func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Empty reports whether the token carries no claims at all, registered or
// Fanray-specific. Such tokens were not issued by us.
func (c *AccessClaims) Empty() bool {
	return c.RegisteredClaims.ID == "" &&
		c.Issuer == "" &&
		c.Subject == "" &&
		len(c.Audience) == 0 &&
		c.IssuedAt == nil &&
		c.ExpiresAt == nil &&
		c.NotBefore == nil &&
		c.UserData == "" &&
		c.Username == "" &&
		c.DisplayName == "" &&
		c.SerialNumber == "" &&
		len(c.Roles) == 0
}
