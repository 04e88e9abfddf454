package public

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skylith/reoffer/internal/http/api/public/handlers"
	"github.com/skylith/reoffer/internal/offer"
)

// RegisterPublicRoutes registers the unauthenticated signed-link surface.
// Any method or path outside this table is a 404.
func RegisterPublicRoutes(r *gin.Engine, store offer.Store, guard *offer.Guard, machine *offer.Machine, limiter gin.HandlerFunc) {
	if r == nil {
		return
	}

	group := r.Group("/offer")
	group.Use(publicHeaders())
	if limiter != nil {
		group.Use(limiter)
	}

	offerHandler := handlers.NewOfferHandler(store, guard, machine)
	group.GET("/:token", offerHandler.Get)
	group.POST("/:token/next", offerHandler.Next)
	group.POST("/:token/accept", offerHandler.Accept)
	group.POST("/:token/decline", offerHandler.Decline)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// publicHeaders marks responses uncacheable and allows browser access from
// the offer front end's origin.
func publicHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}
