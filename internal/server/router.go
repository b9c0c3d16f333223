package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/entheodex/entheodex-backend/internal/handlers"
	"github.com/entheodex/entheodex-backend/internal/middleware"
)

type RouterConfig struct {
	ImportHandler  *handlers.ImportHandler
	AuthMiddleware *middleware.AuthMiddleware
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.WithRequestID())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAdmin())
	{
		api.POST("/import/preview", cfg.ImportHandler.Preview)
		api.POST("/import/dryrun", cfg.ImportHandler.DryRun)
		api.POST("/import/commit", cfg.ImportHandler.Commit)
		api.GET("/import/runs", cfg.ImportHandler.ListRuns)
		api.GET("/import/runs/:id", cfg.ImportHandler.GetRun)
	}

	return router
}
