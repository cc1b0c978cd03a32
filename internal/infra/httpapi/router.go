package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the owner-facing and public routes. Every route except
// the public video list and the health check requires a bearer token.
func NewRouter(h *Handler, jwtSecret string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := AuthMiddleware(jwtSecret)

	videos := router.Group("/api/videos", auth)
	{
		videos.POST("/upload", h.Upload)
		videos.GET("", h.ListMine)
		videos.GET("/:id", h.Detail)
		videos.DELETE("/:id", h.Delete)
	}

	public := router.Group("/api/public")
	{
		public.GET("/videos", h.ListPublic)
		public.POST("/videos/:id/vote", auth, h.Vote)
		public.GET("/rankings", h.Rankings)
	}

	return router
}
