package domain

import (
	"errors"
	"time"
)

var ErrWorkerNotFound = errors.New("worker not found")

const (
	WorkerStatusActive      = "active"
	WorkerStatusInactive    = "inactive"
	WorkerStatusUnreachable = "unreachable"
)

// Worker is a registered process able to claim and execute tasks (spec §3).
type Worker struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
