package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/tract-board/internal/http/middleware"
)

// NewRouter assembles the Gin engine. The dashboard is served to browsers
// from arbitrary origins, so CORS mirrors the original's allow-all policy.
func NewRouter(handler *Handler, log zerolog.Logger, environment string) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	handler.Register(router)
	return router
}
