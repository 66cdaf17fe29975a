package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/elwyn-b/pgqueue/internal/metrics"
)

// Dispatcher is the subset of dispatch.Engine the worker runtime depends
// on. Declaring it here (consumer side) keeps this package testable
// without importing the dispatch package's SQL-adjacent dependencies.
type Dispatcher interface {
	RegisterWorker(ctx context.Context, name string) (*domain.Worker, error)
	Heartbeat(ctx context.Context, id string) (*domain.Worker, error)
	SetWorkerStatus(ctx context.Context, id, status string) (*domain.Worker, error)
	ClaimNext(ctx context.Context, workerID string) (*domain.Task, error)
	CompleteTask(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error)
	FailTask(ctx context.Context, id string, errMsg string) (*domain.Task, error)
}

// Runner implements the worker runtime loop of spec §4.5/§5: register,
// heartbeat, and up to maxInFlight concurrent claim-process-report lanes
// (WORKER_MAX_TASKS, an advisory in-flight cap per spec.md §4.5), with an
// idle poll sleep chunked into ≤1-second slices so it stays responsive to
// cancellation.
type Runner struct {
	name              string
	id                string
	dispatcher        Dispatcher
	executor          PayloadExecutor
	logger            *slog.Logger
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	maxInFlight       int
}

func NewRunner(dispatcher Dispatcher, executor PayloadExecutor, logger *slog.Logger, pollInterval, heartbeatInterval time.Duration, maxInFlight int) *Runner {
	hostname, _ := os.Hostname()
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Runner{
		name:              fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()),
		dispatcher:        dispatcher,
		executor:          executor,
		logger:            logger.With("component", "worker"),
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
		maxInFlight:       maxInFlight,
	}
}

// Run registers the worker and blocks, running maxInFlight concurrent
// claim-execute lanes until ctx is cancelled. On return, the worker's
// status is flipped to inactive (spec §4.5 step 4).
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.dispatcher.RegisterWorker(ctx, r.name)
	if err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	r.id = w.ID
	metrics.WorkerStartTime.Set(float64(time.Now().Unix()))
	r.logger.Info("worker registered", "worker_id", r.id, "name", r.name, "max_in_flight", r.maxInFlight)

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	go r.heartbeatLoop(heartbeatCtx)

	var wg sync.WaitGroup
	for i := 0; i < r.maxInFlight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.claimLoop(ctx)
		}()
	}
	wg.Wait()
	stopHeartbeat()

	if _, err := r.dispatcher.SetWorkerStatus(context.Background(), r.id, domain.WorkerStatusInactive); err != nil {
		r.logger.Error("set inactive on shutdown failed", "error", err)
	}
	metrics.WorkerShutdownsTotal.Inc()
	r.logger.Info("worker shut down", "worker_id", r.id)
	return nil
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.dispatcher.Heartbeat(ctx, r.id); err != nil {
				r.logger.Error("heartbeat failed", "error", err)
			}
		}
	}
}

func (r *Runner) claimLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := r.dispatcher.ClaimNext(ctx, r.id)
		if err != nil {
			r.logger.Error("claim failed", "error", err)
			r.sleep(ctx, r.pollInterval)
			continue
		}

		if task == nil {
			r.sleep(ctx, r.pollInterval)
			continue
		}

		r.runTask(ctx, task)
	}
}

func (r *Runner) runTask(ctx context.Context, task *domain.Task) {
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	r.logger.Info("executing task", "task_id", task.ID, "name", task.Name)
	start := time.Now()
	result, err := r.executor.Execute(ctx, task)
	duration := time.Since(start)

	if err != nil {
		metrics.TaskExecutionDuration.WithLabelValues("failed").Observe(duration.Seconds())
		if _, ferr := r.dispatcher.FailTask(ctx, task.ID, err.Error()); ferr != nil {
			r.logger.Error("fail task failed", "task_id", task.ID, "error", ferr)
		}
		r.logger.Info("task failed", "task_id", task.ID, "duration", duration, "error", err)
		return
	}

	metrics.TaskExecutionDuration.WithLabelValues("completed").Observe(duration.Seconds())
	if _, cerr := r.dispatcher.CompleteTask(ctx, task.ID, result); cerr != nil {
		r.logger.Error("complete task failed", "task_id", task.ID, "error", cerr)
	}
	r.logger.Info("task completed", "task_id", task.ID, "duration", duration)
}

// sleep waits up to d, checking ctx.Done() at least once per second so
// shutdown remains responsive (spec §5 suspension-point requirement).
func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		slice := remaining
		if slice > time.Second {
			slice = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(slice):
		}
	}
}
