package worker

import (
	"context"
	"encoding/json"

	"github.com/elwyn-b/pgqueue/internal/domain"
)

// PayloadExecutor is the pluggable "what the task does" seam the spec
// places outside the dispatch core's scope (spec §1, §4.5). The worker
// runtime claims a task, hands it to an Execute call, and maps the result
// into Complete/Fail — it never interprets the payload itself.
type PayloadExecutor interface {
	Execute(ctx context.Context, task *domain.Task) (result json.RawMessage, err error)
}
