package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appredis "nexuschat/internal/redis"
	"nexuschat/internal/transport/httpdto"
)

// RateLimit throttles the wrapped routes per client IP. A nil limiter, or a
// Redis failure, lets the request through: throttling is advisory and must
// never take the login path down with the cache.
func RateLimit(limiter *appredis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(res.ResetIn.Seconds())))

		if !res.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("too many requests", "RATE_LIMITED"))
			return
		}
		c.Next()
	}
}
