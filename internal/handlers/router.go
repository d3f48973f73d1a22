package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pipetrail/pipetrail/internal/auth"
)

// NewRouter assembles the gin engine: CORS from the allowlist, the open
// routes, and the API routes behind the optional bearer-token check.
func NewRouter(api *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if len(api.Config.CORSAllowlist) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: api.Config.CORSAllowlist,
			AllowMethods: []string{"GET", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		}))
	}

	open := r.Group("/api/v1")
	open.GET("/about", api.About)
	open.GET("/healthcheck", api.Healthcheck)
	open.GET("/monitoring", api.Monitoring)

	protected := r.Group("/api/v1")
	if api.Config.Auth.Enabled {
		protected.Use(auth.Middleware(api.Config.Auth.Secret))
	}
	protected.GET("/recents", api.Recents)
	protected.GET("/story/:kind/:id", api.GetStory)
	protected.GET("/allstories/:kind/:id", api.GetAllStories)
	protected.GET("/siblings/:kind/:id", api.GetSiblings)
	protected.GET("/relationships/:kind/:id/:relationship", api.GetRelationship)
	protected.GET("/:kind/:id", api.GetResource)

	return r
}
