package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimecity3k/crimemap-backend-go/internal/config"
	"github.com/crimecity3k/crimemap-backend-go/internal/handler"
	"github.com/crimecity3k/crimemap-backend-go/internal/metrics"
	"github.com/crimecity3k/crimemap-backend-go/internal/middleware"
)

// SetupRouter wires the drill-down API, the metrics endpoint and the
// static mounts for the frontend and the tile archives.
func SetupRouter(cfg *config.Config, eventHandler *handler.EventHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.RateLimit(120, time.Minute))

	// CORS for the map client
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", eventHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/events", eventHandler.GetEvents)
		api.GET("/types", eventHandler.GetTypes)
	}

	// tile archives and the frontend are plain files, replaced
	// wholesale by the batch jobs
	if dirExists(cfg.TilesDir) {
		r.Static("/data/tiles/pmtiles", cfg.TilesDir)
	}
	if dirExists(cfg.StaticDir) {
		r.Static("/static", cfg.StaticDir)
	}

	return r
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
