package repository

import (
	"context"

	"github.com/elwyn-b/pgqueue/internal/domain"
)

// WorkerRepository backs worker registration, heartbeat, and status
// (spec §4.5). Deleting a worker never cascades to its tasks (spec §3) —
// this interface has no Delete because nothing in the spec calls for one.
type WorkerRepository interface {
	Create(ctx context.Context, name string) (*domain.Worker, error)
	Get(ctx context.Context, id string) (*domain.Worker, error)
	UpdateHeartbeat(ctx context.Context, id string) (*domain.Worker, error)
	SetStatus(ctx context.Context, id, status string) (*domain.Worker, error)
}
