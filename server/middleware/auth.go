package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/errors"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate verifies the Authorization bearer token and stores its claims
// on the request context. A nil parser lets every request through.
func Authenticate(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, errors.Unauthorized("authorization header required"))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, errors.Unauthorized("invalid authorization header format"))
			return
		}
		claims, err := parser.Parse(token)
		if err != nil {
			abort(c, errors.From(err))
			return
		}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireScope rejects requests whose claims lack scope. Requests without
// claims pass, so the check is a no-op when authentication is off.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFromContext(c.Request.Context())
		if ok && !claims.Allows(scope) {
			abort(c, errors.Forbidden(scope))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err *errors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
