// middleware/rate_limiter.go

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/trackgate/db"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
)

// RateLimiter bounds requests per client IP with a Redis sliding window.
// A non-positive limit disables it.
func RateLimiter(client *redis.Client, limit int, per time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || client == nil {
			c.Next()
			return
		}

		key := c.ClientIP()
		allowed, err := db.RateLimit(c.Request.Context(), client, key, limit, per)
		if err != nil {
			logger.Error("Rate limiting failed", zap.Error(err), zap.String("ip", key))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Rate limiting unavailable"})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Duration", per.String())

		if !allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", key),
				zap.Int("limit", limit),
				zap.Duration("per", per))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
