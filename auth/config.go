package auth

// Config is the configuration surface the token engine consumes. Hosts map
// their own settings layer onto it.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenMinutes() int
	GetRefreshTokenMinutes() int
}

// TokenConfig is a plain-struct Config for hosts without their own settings
// layer.
type TokenConfig struct {
	SigningKey          string
	Issuer              string
	Audience            []string
	AccessTokenMinutes  int
	RefreshTokenMinutes int
}

var _ Config = (*TokenConfig)(nil)

func (c *TokenConfig) GetSigningKey() string { return c.SigningKey }

func (c *TokenConfig) GetIssuer() string { return c.Issuer }

func (c *TokenConfig) GetAudience() []string { return c.Audience }

// GetAccessTokenMinutes defaults to 20 minutes when unset.
func (c *TokenConfig) GetAccessTokenMinutes() int {
	if c.AccessTokenMinutes <= 0 {
		return 20
	}
	return c.AccessTokenMinutes
}

// GetRefreshTokenMinutes defaults to 60 minutes when unset.
func (c *TokenConfig) GetRefreshTokenMinutes() int {
	if c.RefreshTokenMinutes <= 0 {
		return 60
	}
	return c.RefreshTokenMinutes
}
