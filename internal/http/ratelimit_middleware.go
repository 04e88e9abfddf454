package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/skylith/reoffer/internal/config"
	log "github.com/sirupsen/logrus"
)

// RateLimitMiddleware applies a fixed-window request limit per client IP and
// offer id on the public surface, damping token brute-forcing and runaway
// retries. It fails open: if Redis is unreachable the request proceeds.
func RateLimitMiddleware(client *redis.Client, cfg config.RateLimitConfig) gin.HandlerFunc {
	if client == nil || cfg.Requests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second

	return func(c *gin.Context) {
		key := fmt.Sprintf("reoffer:rl:%s:%s", c.ClientIP(), c.Query("offerId"))

		count, errIncr := client.Incr(c.Request.Context(), key).Result()
		if errIncr != nil {
			log.WithError(errIncr).Debug("rate limit counter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			if errExpire := client.Expire(c.Request.Context(), key, window).Err(); errExpire != nil {
				log.WithError(errExpire).Debug("rate limit expire failed")
			}
		}
		if count > int64(cfg.Requests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
