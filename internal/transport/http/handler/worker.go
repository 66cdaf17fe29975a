package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/gin-gonic/gin"
)

// WorkerEngine is the subset of dispatch.Engine the worker routes depend on.
type WorkerEngine interface {
	RegisterWorker(ctx context.Context, name string) (*domain.Worker, error)
	GetWorker(ctx context.Context, id string) (*domain.Worker, error)
	Heartbeat(ctx context.Context, id string) (*domain.Worker, error)
	SetWorkerStatus(ctx context.Context, id, status string) (*domain.Worker, error)
}

type WorkerHandler struct {
	engine WorkerEngine
	logger *slog.Logger
}

func NewWorkerHandler(engine WorkerEngine, logger *slog.Logger) *WorkerHandler {
	return &WorkerHandler{engine: engine, logger: logger.With("component", "worker_handler")}
}

type registerWorkerRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *WorkerHandler) Register(c *gin.Context) {
	var req registerWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, err := h.engine.RegisterWorker(c.Request.Context(), req.Name)
	if err != nil {
		h.respondErr(c, err, "register worker")
		return
	}
	c.JSON(http.StatusCreated, worker)
}

func (h *WorkerHandler) Get(c *gin.Context) {
	id := c.Param("id")
	worker, err := h.engine.GetWorker(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "get worker")
		return
	}
	c.JSON(http.StatusOK, worker)
}

func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	id := c.Param("id")
	worker, err := h.engine.Heartbeat(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "worker heartbeat")
		return
	}
	c.JSON(http.StatusOK, worker)
}

type setWorkerStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *WorkerHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")

	var req setWorkerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, err := h.engine.SetWorkerStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondErr(c, err, "set worker status")
		return
	}
	c.JSON(http.StatusOK, worker)
}

func (h *WorkerHandler) respondErr(c *gin.Context, err error, op string) {
	if errors.Is(err, domain.ErrWorkerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": errWorkerNotFound})
		return
	}
	h.logger.Error(op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}
