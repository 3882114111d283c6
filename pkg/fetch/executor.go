package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"invezgo-pipeline/pkg/plan"
	"invezgo-pipeline/pkg/schema"
)

// SystemIngestedAt is the ingestion-timestamp column appended to every
// committed record, after all business and injected columns.
const SystemIngestedAt = "_sys_ingested_at"

const systemPrefix = "_sys_"

// Fetcher is the remote-call collaborator the executor fans tasks out to.
type Fetcher interface {
	Fetch(ctx context.Context, path string, params map[string]string) ([]schema.Record, error)
}

// TaskFailure is one isolated fetch failure. The batch it belongs to keeps
// running.
type TaskFailure struct {
	Task plan.Task
	Err  error
}

func (f TaskFailure) Error() string {
	if f.Task.Value != "" || f.Task.Date != "" {
		return fmt.Sprintf("task %s (value=%s date=%s): %v", f.Task.Endpoint, f.Task.Value, f.Task.Date, f.Err)
	}
	return fmt.Sprintf("task %s: %v", f.Task.Endpoint, f.Err)
}

// Executor runs planned tasks against the remote API with a bounded worker
// pool and collects the resulting records in task order.
type Executor struct {
	fetcher Fetcher
	workers int
	now     func() time.Time
}

// NewExecutor builds an executor. workers <= 1 gives the strictly
// sequential reference behavior.
func NewExecutor(fetcher Fetcher, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{fetcher: fetcher, workers: workers, now: time.Now}
}

// Execute runs every task and returns all collected records plus the
// failures. A failing task never aborts its siblings, and all tasks have
// finished before Execute returns, so callers can safely start committing.
func (e *Executor) Execute(ctx context.Context, tasks []plan.Task) ([]schema.Record, []TaskFailure) {
	results := make([][]schema.Record, len(tasks))
	failures := make([]*TaskFailure, len(tasks))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, task := range tasks {
		g.Go(func() error {
			log.Printf("[Fetch] [%d/%d] %s value=%s date=%s", i+1, len(tasks), task.Path, task.Value, task.Date)

			items, err := e.fetcher.Fetch(ctx, task.Path, task.Params)
			if err != nil {
				log.Printf("[Fetch] Task failed for %s: %v", task.Endpoint, err)
				failures[i] = &TaskFailure{Task: task, Err: err}
				return nil
			}

			stamp := e.now().In(plan.PipelineZone).Format(time.RFC3339)
			records := make([]schema.Record, 0, len(items))
			for _, item := range items {
				records = append(records, buildRecord(item, task.Inject, stamp))
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var records []schema.Record
	for _, rs := range results {
		records = append(records, rs...)
	}
	var failed []TaskFailure
	for _, f := range failures {
		if f != nil {
			failed = append(failed, *f)
		}
	}

	log.Printf("[Fetch] %d task(s): %d record(s), %d failure(s)", len(tasks), len(records), len(failed))
	return records, failed
}

// buildRecord copies the API fields, overlays the injected columns (an
// injected value overrides a same-named API field), and appends the
// ingestion timestamp. Stale _sys_ fields from the payload are dropped so
// the system column is always ours.
func buildRecord(item schema.Record, inject map[string]string, stamp string) schema.Record {
	rec := make(schema.Record, len(item)+len(inject)+1)
	for k, v := range item {
		if strings.HasPrefix(k, systemPrefix) {
			continue
		}
		rec[k] = v
	}
	for col, val := range inject {
		rec[col] = val
	}
	rec[SystemIngestedAt] = stamp
	return rec
}
