package auth

import (
	"fmt"
	"time"
)

// SigningMethod is a supported HMAC algorithm.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

// Config configures token verification for the API.
type Config struct {
	// Enabled turns bearer token checks on.
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Secret  string        `yaml:"secret" mapstructure:"secret"`
	Method  SigningMethod `yaml:"method" mapstructure:"method"`
	Issuer  string        `yaml:"issuer" mapstructure:"issuer"`
	// Audience, when set, must appear in the token's "aud" claim.
	Audience string `yaml:"audience" mapstructure:"audience"`
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.Issuer == "" {
		c.Issuer = "pixelflow"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Method {
	case HS256, HS384, HS512:
	default:
		return fmt.Errorf("auth.method: unsupported signing method %q", c.Method)
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("auth.secret must be at least 16 characters")
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must be non-negative (got: %s)", c.TokenTTL)
	}
	return nil
}

// Describe returns a one-liner for the startup summary.
func (c *Config) Describe() string {
	if !c.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("JWT(%s) iss=%s TTL=%s", c.Method, c.Issuer, c.TokenTTL)
}
