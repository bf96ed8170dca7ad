package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportit/ratelimit"
)

// RateLimit throttles by client address. Limiter errors let the request
// through; a nil limiter disables throttling.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, err := limiter.Allow(c.Request.Context(), c.FullPath()+"|"+ip)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("client_ip", ip), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, try again later"})
			return
		}
		c.Next()
	}
}
