package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/logarchive/internal/api/handler"
	"github.com/timmy/logarchive/internal/api/middleware"
	"github.com/timmy/logarchive/internal/logger"
	"github.com/timmy/logarchive/internal/service"
)

// SetupRouter configures the Gin router for the archiver's status endpoint.
func SetupRouter(
	tracker *service.StatusTracker,
	watermark handler.WatermarkReader,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	switch mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))

	statusHandler := handler.NewStatusHandler(tracker, watermark)

	r.GET("/health", statusHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", statusHandler.Status)
	}

	return r
}
