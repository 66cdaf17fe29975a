package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkerRepository struct {
	pool *pgxpool.Pool
}

func NewWorkerRepository(pool *pgxpool.Pool) *WorkerRepository {
	return &WorkerRepository{pool: pool}
}

const workerColumns = `id, name, status, last_heartbeat, created_at, updated_at`

func (r *WorkerRepository) Create(ctx context.Context, name string) (*domain.Worker, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO workers (name, status, last_heartbeat)
		VALUES ($1, $2, NOW())
		RETURNING `+workerColumns, name, domain.WorkerStatusActive)
	return scanWorker(row)
}

func (r *WorkerRepository) Get(ctx context.Context, id string) (*domain.Worker, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id)
	return scanWorker(row)
}

func (r *WorkerRepository) UpdateHeartbeat(ctx context.Context, id string) (*domain.Worker, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE workers
		SET    last_heartbeat = NOW(), updated_at = NOW()
		WHERE  id = $1
		RETURNING `+workerColumns, id)
	return scanWorker(row)
}

func (r *WorkerRepository) SetStatus(ctx context.Context, id, status string) (*domain.Worker, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE workers
		SET    status = $2, updated_at = NOW()
		WHERE  id = $1
		RETURNING `+workerColumns, id, status)
	return scanWorker(row)
}

func scanWorker(row rowScanner) (*domain.Worker, error) {
	var w domain.Worker
	err := row.Scan(&w.ID, &w.Name, &w.Status, &w.LastHeartbeat, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("scan worker: %w", err)
	}
	return &w, nil
}
