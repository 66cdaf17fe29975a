package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, name, payload, priority, status, scheduled_at, started_at,
	completed_at, created_at, updated_at, worker_id, result, error`

func (r *TaskRepository) Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(input.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is required", domain.ErrValidation)
	}

	priority := domain.PriorityMedium
	if input.Priority != nil {
		priority = *input.Priority
	}

	status := domain.StatusPending
	if input.ScheduledAt != nil {
		status = domain.StatusScheduled
	}

	query := `
		INSERT INTO tasks (name, payload, priority, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query, input.Name, input.Payload, priority, status, input.ScheduledAt)
	return scanTask(row)
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

const maxListLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (r *TaskRepository) List(ctx context.Context, skip, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC OFFSET $1 LIMIT $2`,
		skip, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *TaskRepository) ListByStatus(ctx context.Context, status domain.Status, skip, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at ASC, id ASC OFFSET $2 LIMIT $3`,
		status, skip, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *TaskRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// Update applies an operator-correction patch (spec §4.2). Status changes
// made here bypass the guarded transitions in §4.4 by design.
func (r *TaskRepository) Update(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	argN := 1

	add := func(col string, val any) {
		argN++
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Payload != nil {
		add("payload", patch.Payload)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.HasSchedule {
		add("scheduled_at", patch.ScheduledAt)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $1 RETURNING %s`,
		joinComma(sets), taskColumns)

	row := r.pool.QueryRow(ctx, query, append([]any{id}, args...)...)
	return scanTask(row)
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimNext is the dispatch engine's core contract (spec §4.3): one
// transaction, skip-locked selection over the ready set in the mandated
// order, then an in-place transition to RUNNING.
func (r *TaskRepository) ClaimNext(ctx context.Context, workerID string) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET    status       = 'running',
		       started_at   = NOW(),
		       worker_id    = $1,
		       updated_at   = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE  status = 'pending'
			   OR  (status = 'scheduled' AND scheduled_at <= NOW())
			ORDER BY priority DESC, scheduled_at ASC NULLS FIRST, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query, workerID)
	task, err := scanTask(row)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) Pause(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET    status = 'paused', updated_at = NOW()
		WHERE  id = $1 AND status IN ('pending', 'scheduled', 'running')
		RETURNING `+taskColumns, id)
	return scanTask(row)
}

// Resume decides PENDING vs SCHEDULED from scheduled_at (spec §4.4).
func (r *TaskRepository) Resume(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET    status = CASE
		           WHEN scheduled_at IS NULL OR scheduled_at <= NOW() THEN 'pending'
		           ELSE 'scheduled'
		       END,
		       updated_at = NOW()
		WHERE  id = $1 AND status = 'paused'
		RETURNING `+taskColumns, id)
	return scanTask(row)
}

func (r *TaskRepository) Complete(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET    status = 'completed', completed_at = NOW(), result = $2, error = NULL, updated_at = NOW()
		WHERE  id = $1 AND status = 'running'
		RETURNING `+taskColumns, id, result)
	return scanTask(row)
}

func (r *TaskRepository) Fail(ctx context.Context, id string, errMsg string) (*domain.Task, error) {
	if errMsg == "" {
		return nil, fmt.Errorf("%w: error must be non-empty", domain.ErrValidation)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET    status = 'failed', completed_at = NOW(), error = $2, result = NULL, updated_at = NOW()
		WHERE  id = $1 AND status = 'running'
		RETURNING `+taskColumns, id, errMsg)
	return scanTask(row)
}

// RescueStale re-PENDs RUNNING tasks whose claiming worker's heartbeat is
// older than staleCutoff (spec §9 dead-worker reaper, resolved in
// SPEC_FULL.md §4.5). FOR UPDATE SKIP LOCKED lets it run concurrently with
// ClaimNext without new locking primitives.
func (r *TaskRepository) RescueStale(ctx context.Context, staleCutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET    status       = 'pending',
		       worker_id    = NULL,
		       started_at   = NULL,
		       updated_at   = NOW()
		WHERE id IN (
			SELECT t.id FROM tasks t
			JOIN workers w ON w.id = t.worker_id
			WHERE t.status = 'running' AND w.last_heartbeat < $1
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff)
	if err != nil {
		return 0, fmt.Errorf("rescue stale tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Name, &t.Payload, &t.Priority, &t.Status, &t.ScheduledAt, &t.StartedAt,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt, &t.WorkerID, &t.Result, &t.Error,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
