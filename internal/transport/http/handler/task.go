package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/gin-gonic/gin"
)

// TaskEngine is the subset of dispatch.Engine the HTTP layer depends on.
type TaskEngine interface {
	CreateTask(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, skip, limit int) ([]*domain.Task, error)
	ListTasksByStatus(ctx context.Context, status string, skip, limit int) ([]*domain.Task, error)
	CountTasks(ctx context.Context) (int, error)
	UpdateTask(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	PauseTask(ctx context.Context, id string) (*domain.Task, error)
	ResumeTask(ctx context.Context, id string) (*domain.Task, error)
}

type TaskHandler struct {
	engine TaskEngine
	logger *slog.Logger
}

func NewTaskHandler(engine TaskEngine, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{engine: engine, logger: logger.With("component", "task_handler")}
}

type createTaskRequest struct {
	Name        string           `json:"name"         binding:"required"`
	Payload     interface{}      `json:"payload"      binding:"required"`
	Priority    *domain.Priority `json:"priority"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	task, err := h.engine.CreateTask(c.Request.Context(), domain.CreateTaskInput{
		Name:        req.Name,
		Payload:     payload,
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.respondErr(c, err, "create task")
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) Get(c *gin.Context) {
	id := c.Param("id")
	task, err := h.engine.GetTask(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "get task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 50)
	status := c.Query("status")

	var (
		tasks []*domain.Task
		err   error
	)
	if status != "" {
		tasks, err = h.engine.ListTasksByStatus(c.Request.Context(), status, skip, limit)
	} else {
		tasks, err = h.engine.ListTasks(c.Request.Context(), skip, limit)
	}
	if err != nil {
		h.respondErr(c, err, "list tasks")
		return
	}

	total, err := h.engine.CountTasks(c.Request.Context())
	if err != nil {
		h.respondErr(c, err, "count tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": tasks, "total": total, "skip": skip, "limit": limit})
}

type updateTaskRequest struct {
	Name        *string          `json:"name"`
	Payload     interface{}      `json:"payload"`
	Priority    *domain.Priority `json:"priority"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
	HasSchedule *bool            `json:"has_schedule"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := domain.UpdateTaskInput{
		Name:        req.Name,
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
		HasSchedule: req.ScheduledAt != nil || (req.HasSchedule != nil && *req.HasSchedule),
	}
	if req.Payload != nil {
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		patch.Payload = payload
	}

	task, err := h.engine.UpdateTask(c.Request.Context(), id, patch)
	if err != nil {
		h.respondErr(c, err, "update task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.engine.DeleteTask(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "delete task")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Pause(c *gin.Context) {
	id := c.Param("id")
	task, err := h.engine.PauseTask(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "pause task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	task, err := h.engine.ResumeTask(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err, "resume task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) respondErr(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStatus})
	default:
		h.logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
