package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AdamBeresnev/heat-scheduler/internal/metrics"
)

// Tasks runs best-effort work queued after a transaction commits. A failing task is
// logged and counted; it never reaches the caller that queued it.
type Tasks struct {
	wg      sync.WaitGroup
	metrics metrics.Recorder
}

func NewTasks(recorder metrics.Recorder) *Tasks {
	return &Tasks{metrics: metrics.OrNop(recorder)}
}

// Go starts fn detached from ctx's cancellation; ctx values are kept.
func (t *Tasks) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := fn(ctx); err != nil {
			slog.Error("post-commit task failed", "task", name, "error", err)
			t.metrics.TaskFailed(name)
		}
	}()
}

// Wait blocks until every queued task has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
