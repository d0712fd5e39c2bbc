package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/pixelflow/errors"
)

// Scopes understood by the API.
const (
	ScopeRunsRead  = "runs:read"
	ScopeRunsWrite = "runs:write"
	ScopeAll       = "*"
)

// Claims are the JWT claims of an API token.
type Claims struct {
	gojwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// Allows reports whether any of the claim's scopes matches required.
func (c *Claims) Allows(required string) bool {
	for _, s := range c.Scopes {
		if MatchScope(s, required) {
			return true
		}
	}
	return false
}

// MatchScope matches a granted scope against a required one. "*" grants
// everything and "runs:*" grants every "runs:" scope.
func MatchScope(granted, required string) bool {
	if granted == ScopeAll || granted == required {
		return true
	}
	prefix, ok := strings.CutSuffix(granted, "*")
	return ok && strings.HasPrefix(required, prefix)
}

// Service signs and verifies API tokens.
type Service struct {
	cfg    Config
	method gojwt.SigningMethod
	now    func() time.Time
}

// NewService creates a Service. The config is defaulted and validated as if
// it were enabled.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, errors.InvalidInput("auth", err.Error())
	}
	var method gojwt.SigningMethod
	switch cfg.Method {
	case HS384:
		method = gojwt.SigningMethodHS384
	case HS512:
		method = gojwt.SigningMethodHS512
	default:
		method = gojwt.SigningMethodHS256
	}
	return &Service{cfg: cfg, method: method, now: time.Now}, nil
}

// Issue signs a token for subject with the given scopes.
func (s *Service) Issue(subject string, scopes ...string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		Scopes: scopes,
	}
	if s.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.cfg.Audience}
	}
	signed, err := gojwt.NewWithClaims(s.method, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", errors.Internal(fmt.Errorf("sign token: %w", err))
	}
	return signed, nil
}

// Parse verifies token and returns its claims. Any failure is reported as
// INVALID_TOKEN.
func (s *Service) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.method.Alg()}),
		gojwt.WithIssuer(s.cfg.Issuer),
		gojwt.WithTimeFunc(s.now),
	}
	if s.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(s.cfg.Audience))
	}
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, errors.InvalidToken(err)
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
