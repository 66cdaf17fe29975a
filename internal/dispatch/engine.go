// Package dispatch implements the task lifecycle operations of spec §4.4
// and wires the dispatch engine's ClaimNext (spec §4.3) to observability.
// It is pure orchestration over repository.TaskRepository/WorkerRepository
// — no SQL lives here, mirroring the teacher's thin usecase layer.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/elwyn-b/pgqueue/internal/metrics"
	"github.com/elwyn-b/pgqueue/internal/repository"
)

type Engine struct {
	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	logger  *slog.Logger
}

func NewEngine(tasks repository.TaskRepository, workers repository.WorkerRepository, logger *slog.Logger) *Engine {
	return &Engine{tasks: tasks, workers: workers, logger: logger.With("component", "dispatch")}
}

func (e *Engine) CreateTask(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
	return e.tasks.Create(ctx, input)
}

func (e *Engine) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return e.tasks.Get(ctx, id)
}

func (e *Engine) ListTasks(ctx context.Context, skip, limit int) ([]*domain.Task, error) {
	return e.tasks.List(ctx, skip, limit)
}

func (e *Engine) ListTasksByStatus(ctx context.Context, status string, skip, limit int) ([]*domain.Task, error) {
	s := domain.Status(status)
	if !s.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return e.tasks.ListByStatus(ctx, s, skip, limit)
}

func (e *Engine) CountTasks(ctx context.Context) (int, error) {
	return e.tasks.Count(ctx)
}

func (e *Engine) UpdateTask(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error) {
	return e.tasks.Update(ctx, id, patch)
}

func (e *Engine) DeleteTask(ctx context.Context, id string) (bool, error) {
	return e.tasks.Delete(ctx, id)
}

func (e *Engine) PauseTask(ctx context.Context, id string) (*domain.Task, error) {
	return e.tasks.Pause(ctx, id)
}

func (e *Engine) ResumeTask(ctx context.Context, id string) (*domain.Task, error) {
	return e.tasks.Resume(ctx, id)
}

func (e *Engine) CompleteTask(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error) {
	task, err := e.tasks.Complete(ctx, id, result)
	if err == nil {
		metrics.TasksFinishedTotal.WithLabelValues("completed").Inc()
	}
	return task, err
}

func (e *Engine) FailTask(ctx context.Context, id string, errMsg string) (*domain.Task, error) {
	task, err := e.tasks.Fail(ctx, id, errMsg)
	if err == nil {
		metrics.TasksFinishedTotal.WithLabelValues("failed").Inc()
	}
	return task, err
}

// ClaimNext is the dispatch engine's core contract (spec §4.3). It records
// claim-latency and claim-outcome metrics around the repository call.
func (e *Engine) ClaimNext(ctx context.Context, workerID string) (*domain.Task, error) {
	task, err := e.tasks.ClaimNext(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		metrics.ClaimAttemptsTotal.WithLabelValues("empty").Inc()
		return nil, nil
	}
	metrics.ClaimAttemptsTotal.WithLabelValues("claimed").Inc()
	if task.StartedAt != nil {
		readyAt := task.CreatedAt
		if task.ScheduledAt != nil && task.ScheduledAt.After(readyAt) {
			readyAt = *task.ScheduledAt
		}
		metrics.ClaimLatency.Observe(task.StartedAt.Sub(readyAt).Seconds())
	}
	e.logger.Info("task claimed", "task_id", task.ID, "worker_id", workerID, "priority", task.Priority)
	return task, nil
}

func (e *Engine) RegisterWorker(ctx context.Context, name string) (*domain.Worker, error) {
	return e.workers.Create(ctx, name)
}

func (e *Engine) GetWorker(ctx context.Context, id string) (*domain.Worker, error) {
	return e.workers.Get(ctx, id)
}

func (e *Engine) Heartbeat(ctx context.Context, id string) (*domain.Worker, error) {
	return e.workers.UpdateHeartbeat(ctx, id)
}

func (e *Engine) SetWorkerStatus(ctx context.Context, id, status string) (*domain.Worker, error) {
	return e.workers.SetStatus(ctx, id, status)
}
