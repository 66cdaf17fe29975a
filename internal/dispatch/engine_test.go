package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/elwyn-b/pgqueue/internal/dispatch"
	"github.com/elwyn-b/pgqueue/internal/domain"
)

type fakeTaskRepo struct {
	create      func(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error)
	get         func(ctx context.Context, id string) (*domain.Task, error)
	list        func(ctx context.Context, skip, limit int) ([]*domain.Task, error)
	listByStat  func(ctx context.Context, status domain.Status, skip, limit int) ([]*domain.Task, error)
	count       func(ctx context.Context) (int, error)
	update      func(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error)
	del         func(ctx context.Context, id string) (bool, error)
	claimNext   func(ctx context.Context, workerID string) (*domain.Task, error)
	pause       func(ctx context.Context, id string) (*domain.Task, error)
	resume      func(ctx context.Context, id string) (*domain.Task, error)
	complete    func(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error)
	fail        func(ctx context.Context, id string, errMsg string) (*domain.Task, error)
	rescueStale func(ctx context.Context, staleCutoff time.Time) (int, error)
}

func (f *fakeTaskRepo) Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
	return f.create(ctx, input)
}
func (f *fakeTaskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	return f.get(ctx, id)
}
func (f *fakeTaskRepo) List(ctx context.Context, skip, limit int) ([]*domain.Task, error) {
	return f.list(ctx, skip, limit)
}
func (f *fakeTaskRepo) ListByStatus(ctx context.Context, status domain.Status, skip, limit int) ([]*domain.Task, error) {
	return f.listByStat(ctx, status, skip, limit)
}
func (f *fakeTaskRepo) Count(ctx context.Context) (int, error) { return f.count(ctx) }
func (f *fakeTaskRepo) Update(ctx context.Context, id string, patch domain.UpdateTaskInput) (*domain.Task, error) {
	return f.update(ctx, id, patch)
}
func (f *fakeTaskRepo) Delete(ctx context.Context, id string) (bool, error) { return f.del(ctx, id) }
func (f *fakeTaskRepo) ClaimNext(ctx context.Context, workerID string) (*domain.Task, error) {
	return f.claimNext(ctx, workerID)
}
func (f *fakeTaskRepo) Pause(ctx context.Context, id string) (*domain.Task, error) {
	return f.pause(ctx, id)
}
func (f *fakeTaskRepo) Resume(ctx context.Context, id string) (*domain.Task, error) {
	return f.resume(ctx, id)
}
func (f *fakeTaskRepo) Complete(ctx context.Context, id string, result json.RawMessage) (*domain.Task, error) {
	return f.complete(ctx, id, result)
}
func (f *fakeTaskRepo) Fail(ctx context.Context, id string, errMsg string) (*domain.Task, error) {
	return f.fail(ctx, id, errMsg)
}
func (f *fakeTaskRepo) RescueStale(ctx context.Context, staleCutoff time.Time) (int, error) {
	return f.rescueStale(ctx, staleCutoff)
}

type fakeWorkerRepo struct {
	create          func(ctx context.Context, name string) (*domain.Worker, error)
	get             func(ctx context.Context, id string) (*domain.Worker, error)
	updateHeartbeat func(ctx context.Context, id string) (*domain.Worker, error)
	setStatus       func(ctx context.Context, id, status string) (*domain.Worker, error)
}

func (f *fakeWorkerRepo) Create(ctx context.Context, name string) (*domain.Worker, error) {
	return f.create(ctx, name)
}
func (f *fakeWorkerRepo) Get(ctx context.Context, id string) (*domain.Worker, error) {
	return f.get(ctx, id)
}
func (f *fakeWorkerRepo) UpdateHeartbeat(ctx context.Context, id string) (*domain.Worker, error) {
	return f.updateHeartbeat(ctx, id)
}
func (f *fakeWorkerRepo) SetStatus(ctx context.Context, id, status string) (*domain.Worker, error) {
	return f.setStatus(ctx, id, status)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_ClaimNext_EmptyReadySet_ReturnsNilNil(t *testing.T) {
	tasks := &fakeTaskRepo{
		claimNext: func(_ context.Context, _ string) (*domain.Task, error) { return nil, nil },
	}
	e := dispatch.NewEngine(tasks, &fakeWorkerRepo{}, testLogger())

	task, err := e.ClaimNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task != nil {
		t.Errorf("want nil task, got %+v", task)
	}
}

func TestEngine_ClaimNext_PropagatesRepoError(t *testing.T) {
	repoErr := errors.New("db down")
	tasks := &fakeTaskRepo{
		claimNext: func(_ context.Context, _ string) (*domain.Task, error) { return nil, repoErr },
	}
	e := dispatch.NewEngine(tasks, &fakeWorkerRepo{}, testLogger())

	_, err := e.ClaimNext(context.Background(), "worker-1")
	if !errors.Is(err, repoErr) {
		t.Errorf("want wrapped repoErr, got %v", err)
	}
}

func TestEngine_ClaimNext_ReturnsClaimedTask(t *testing.T) {
	want := &domain.Task{ID: "task-1", Name: "send-email", Status: domain.StatusRunning}
	tasks := &fakeTaskRepo{
		claimNext: func(_ context.Context, workerID string) (*domain.Task, error) {
			if workerID != "worker-1" {
				t.Errorf("workerID = %q, want worker-1", workerID)
			}
			return want, nil
		},
	}
	e := dispatch.NewEngine(tasks, &fakeWorkerRepo{}, testLogger())

	got, err := e.ClaimNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEngine_CompleteTask_PropagatesNotFound(t *testing.T) {
	tasks := &fakeTaskRepo{
		complete: func(_ context.Context, _ string, _ json.RawMessage) (*domain.Task, error) {
			return nil, domain.ErrTaskNotFound
		},
	}
	e := dispatch.NewEngine(tasks, &fakeWorkerRepo{}, testLogger())

	_, err := e.CompleteTask(context.Background(), "task-1", nil)
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("want ErrTaskNotFound, got %v", err)
	}
}

func TestEngine_ListTasksByStatus_RejectsInvalidStatus(t *testing.T) {
	e := dispatch.NewEngine(&fakeTaskRepo{}, &fakeWorkerRepo{}, testLogger())

	_, err := e.ListTasksByStatus(context.Background(), "bogus", 0, 10)
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("want ErrInvalidStatus, got %v", err)
	}
}

func TestEngine_ListTasksByStatus_ValidStatus_DelegatesToRepo(t *testing.T) {
	want := []*domain.Task{{ID: "task-1", Status: domain.StatusPending}}
	tasks := &fakeTaskRepo{
		listByStat: func(_ context.Context, status domain.Status, skip, limit int) ([]*domain.Task, error) {
			if status != domain.StatusPending {
				t.Errorf("status = %q, want pending", status)
			}
			return want, nil
		},
	}
	e := dispatch.NewEngine(tasks, &fakeWorkerRepo{}, testLogger())

	got, err := e.ListTasksByStatus(context.Background(), "pending", 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEngine_RegisterWorker_DelegatesToRepo(t *testing.T) {
	want := &domain.Worker{ID: "worker-1", Name: "worker-host-123"}
	workers := &fakeWorkerRepo{
		create: func(_ context.Context, name string) (*domain.Worker, error) {
			if name != want.Name {
				t.Errorf("name = %q, want %q", name, want.Name)
			}
			return want, nil
		},
	}
	e := dispatch.NewEngine(&fakeTaskRepo{}, workers, testLogger())

	got, err := e.RegisterWorker(context.Background(), want.Name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
