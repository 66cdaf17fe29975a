package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/elwyn-b/pgqueue/internal/health"
	"github.com/elwyn-b/pgqueue/internal/transport/http/handler"
	"github.com/elwyn-b/pgqueue/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// NewRouter builds the control-plane surface of spec §6: task CRUD and
// lifecycle transitions, worker registration/lookup/heartbeat/status,
// liveness/readiness, and metrics. jwtKey == nil disables the Auth
// middleware entirely (local/dev mode).
func NewRouter(taskHandler *handler.TaskHandler, workerHandler *handler.WorkerHandler, checker *health.Checker, logger *slog.Logger, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})
	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	api := r.Group("/api")

	// GET routes are registered before Use, so Auth guards only the
	// mutating routes registered after it.
	tasks := api.Group("/tasks")
	tasks.GET("/", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	if jwtKey != nil {
		tasks.Use(middleware.Auth(jwtKey))
	}
	tasks.POST("/", taskHandler.Create)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete)
	tasks.PATCH("/:id/pause", taskHandler.Pause)
	tasks.PATCH("/:id/resume", taskHandler.Resume)

	workers := api.Group("/workers")
	workers.GET("/:id", workerHandler.Get)
	if jwtKey != nil {
		workers.Use(middleware.Auth(jwtKey))
	}
	workers.POST("/", workerHandler.Register)
	workers.PATCH("/:id/heartbeat", workerHandler.Heartbeat)
	workers.PATCH("/:id/status", workerHandler.SetStatus)

	return r
}
