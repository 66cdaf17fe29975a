package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elwyn-b/pgqueue/internal/domain"
)

// TaskRepository is consumed by the dispatch engine, not the other way
// around: it can be backed by Postgres in production and by a fake in
// tests without either side knowing about the other.
type TaskRepository interface {
	Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, skip, limit int) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, status domain.Status, skip, limit int) ([]*domain.Task, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, id string) (bool, error)

	// ClaimNext is the dispatch engine's core contract (spec §4.3): it
	// atomically selects the highest-priority, earliest-ready task and
	// transitions it to RUNNING under the caller's worker ID, or returns
	// (nil, nil) if the ready set is empty.
	ClaimNext(ctx context.Context, workerID string) (*domain.Task, error)

	// Pause/Resume/Complete/Fail implement the guarded transitions of
	// spec §4.4. Each returns domain.ErrTaskNotFound both for an unknown
	// id and for a disallowed transition from the current status — the
	// two are indistinguishable to the caller by design (spec §7).
	Pause(ctx context.Context, id string) (*domain.Task, error)
	Resume(ctx context.Context, id string) (*domain.Task, error)
	Complete(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error)
	Fail(ctx context.Context, id string, errMsg string) (*domain.Task, error)

	// RescueStale re-PENDs RUNNING tasks whose claiming worker's heartbeat
	// is older than staleCutoff, for the dead-worker reaper (spec §9).
	RescueStale(ctx context.Context, staleCutoff time.Time) (int, error)
}
