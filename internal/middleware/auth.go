package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usersapp/internal/security"
)

const claimsKey = "auth_claims"

type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// Auth rejects requests without a valid bearer token. Every failure gets the
// same 401 body; the reason only goes to the log.
func Auth(tokens TokenVerifier, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, tokenStr, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			log.Warn().
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request.URL.Path).
				Msg("missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		claims, err := tokens.Verify(strings.TrimSpace(tokenStr))
		if err != nil {
			log.Warn().
				Err(err).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request.URL.Path).
				Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set(claimsKey, *claims)
		c.Next()
	}
}

func CurrentClaims(c *gin.Context) (security.Claims, bool) {
	val, ok := c.Get(claimsKey)
	if !ok {
		return security.Claims{}, false
	}
	claims, ok := val.(security.Claims)
	return claims, ok
}

// CurrentSubject returns the authenticated user id, or "" outside Auth.
func CurrentSubject(c *gin.Context) string {
	claims, ok := CurrentClaims(c)
	if !ok {
		return ""
	}
	return claims.Subject
}
