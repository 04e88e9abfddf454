package ops

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skylith/reoffer/internal/config"
	"github.com/skylith/reoffer/internal/events"
	"github.com/skylith/reoffer/internal/finder"
	"github.com/skylith/reoffer/internal/http/api/ops/handlers"
	"github.com/skylith/reoffer/internal/notify"
	"github.com/skylith/reoffer/internal/offer"
	"github.com/skylith/reoffer/internal/security"
)

// RegisterOpsRoutes registers the authenticated operations surface through
// which the upstream disruption pipeline enters.
func RegisterOpsRoutes(r *gin.Engine, opsCfg config.OpsConfig, store offer.Store, issuer *offer.Issuer, find finder.Finder, notifier notify.Notifier, audit *events.Recorder) {
	if r == nil {
		return
	}

	group := r.Group("/ops")

	authHandler := handlers.NewAuthHandler(opsCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(opsAuthMiddleware(opsCfg))

	offerHandler := handlers.NewOfferOpsHandler(store, issuer, find, notifier, audit)
	authed.POST("/offers", offerHandler.Create)
	authed.GET("/offers/:offerId", offerHandler.Get)
	authed.POST("/disruptions/:flightNo/simulate", offerHandler.Simulate)
}

// opsAuthMiddleware validates ops session JWTs.
func opsAuthMiddleware(opsCfg config.OpsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseOpsToken(opsCfg.JWTSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("opsUser", claims.Username)
		c.Next()
	}
}
