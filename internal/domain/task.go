package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrValidation    = errors.New("validation error")
	ErrInvalidStatus = errors.New("invalid status")
)

// Status is the task lifecycle state (spec §3/§4.4).
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusRunning, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Priority has a total order CRITICAL > HIGH > MEDIUM > LOW. It is persisted
// as its ordinal so ORDER BY sorts correctly (see spec §9 — ordering by the
// symbolic name lexically is a documented bug in the original source).
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch s {
	case "LOW":
		return PriorityLow, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	case "CRITICAL":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, s)
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	parsed, err := ParsePriority(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Scan/Value let Priority round-trip through pgx as the SMALLINT column
// spec §9 mandates, independent of the JSON symbolic-name representation.
func (p *Priority) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = Priority(v)
	case int32:
		*p = Priority(v)
	case int:
		*p = Priority(v)
	case nil:
		*p = PriorityMedium
	default:
		return fmt.Errorf("unsupported priority scan type %T", src)
	}
	return nil
}

func (p Priority) Value() (driver.Value, error) {
	return int64(p), nil
}

// Task is the full view of a queued unit of work (spec §3).
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Priority    Priority        `json:"priority"`
	Status      Status          `json:"status"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	WorkerID    *string         `json:"worker_id"`
	Result      json.RawMessage `json:"result"`
	Error       *string         `json:"error"`
}

// CreateTaskInput is the payload accepted by TaskRepository.Create.
type CreateTaskInput struct {
	Name        string
	Payload     json.RawMessage
	Priority    *Priority
	ScheduledAt *time.Time
}

// UpdateTaskInput is an operator-correction patch (spec §4.2). A nil field
// means "absent from the patch", not "set to null" — mirrors the original's
// model_dump(exclude_unset=True) semantics.
type UpdateTaskInput struct {
	Name        *string
	Payload     json.RawMessage
	Priority    *Priority
	ScheduledAt *time.Time
	HasSchedule bool // distinguishes "ScheduledAt not patched" from "patched to nil"
	Status      *Status
}
