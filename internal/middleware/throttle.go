package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usersapp/internal/ratelimit"
)

// Throttle limits requests per client IP. A nil limiter disables it; a
// limiter error lets the request through.
func Throttle(limiter ratelimit.Limiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Error().
				Err(err).
				Str("request_id", GetRequestID(c)).
				Msg("rate limiter unavailable")
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many login attempts"})
			return
		}

		c.Next()
	}
}
