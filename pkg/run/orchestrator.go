// Package run sequences endpoints through the plan → fetch → commit
// pipeline and aggregates per-endpoint results. One endpoint's failure
// never stops the ones after it.
package run

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"invezgo-pipeline/pkg/endpoint"
	"invezgo-pipeline/pkg/fetch"
	"invezgo-pipeline/pkg/plan"
	"invezgo-pipeline/pkg/schema"
	"invezgo-pipeline/pkg/secrets"
	"invezgo-pipeline/pkg/source"
	"invezgo-pipeline/pkg/warehouse"
)

// maxReportedErrors caps how many task/group errors land in a Result; the
// counters carry the totals.
const maxReportedErrors = 10

// FetcherFactory builds the API client once the token is known.
type FetcherFactory func(token string) fetch.Fetcher

// Orchestrator wires the collaborators for one pipeline invocation.
type Orchestrator struct {
	Store      warehouse.Store
	Secrets    secrets.Provider
	NewFetcher FetcherFactory

	SecretName    string
	SecretVersion string
	Workers       int
}

// Run executes every enabled endpoint matching modeFilter ("" runs all
// modes). The secret is resolved once and shared read-only; date arguments
// are validated before anything is planned. The returned error is run-fatal
// (bad date args or secret access); per-endpoint failures live in the
// results.
func (o *Orchestrator) Run(
	ctx context.Context,
	specs []endpoint.Spec,
	modeFilter string,
	args plan.DateArgs,
) ([]Result, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	token, err := o.Secrets.GetSecret(ctx, o.SecretName, o.SecretVersion)
	if err != nil {
		return nil, err
	}

	fetcher := o.NewFetcher(token)
	executor := fetch.NewExecutor(fetcher, o.Workers)
	resolver := source.NewResolver(o.Store)
	batcher := warehouse.NewBatcher(o.Store, schema.NewManager())

	runID := uuid.NewString()
	log.Printf("[Pipeline] Run %s starting", runID)

	var results []Result
	for i := range specs {
		spec := &specs[i]
		if !spec.IsEnabled() {
			continue
		}
		if modeFilter != "" && spec.Mode != modeFilter {
			continue
		}

		log.Printf("[Pipeline] Processing endpoint %s (mode: %s)", spec.Name, spec.Mode)
		res := o.runEndpoint(ctx, spec, args, executor, resolver, batcher)
		res.RunID = runID
		results = append(results, res)
	}

	return results, nil
}

func (o *Orchestrator) runEndpoint(
	ctx context.Context,
	spec *endpoint.Spec,
	args plan.DateArgs,
	executor *fetch.Executor,
	resolver *source.Resolver,
	batcher *warehouse.Batcher,
) Result {
	switch spec.Mode {
	case endpoint.ModeStreaming:
		log.Printf("[Streaming] %s - not yet implemented", spec.Name)
		return Result{Endpoint: spec.Name, Mode: spec.Mode, Status: StatusNotImplemented}
	case endpoint.ModeOnetime:
		// Onetime is the degenerate batch: one task, full-table replace.
		return o.ingest(ctx, spec, nil, args, executor, resolver, batcher)
	default:
		return o.ingest(ctx, spec, spec.PartitionKey, args, executor, resolver, batcher)
	}
}

// ingest runs the plan → fetch → commit pipeline for one endpoint.
func (o *Orchestrator) ingest(
	ctx context.Context,
	spec *endpoint.Spec,
	partitionKey []string,
	args plan.DateArgs,
	executor *fetch.Executor,
	resolver *source.Resolver,
	batcher *warehouse.Batcher,
) Result {
	res := Result{Endpoint: spec.Name, Mode: spec.Mode, Status: StatusSuccess}

	tasks, err := plan.Build(ctx, spec, args, resolver)
	if err != nil {
		res.Status = StatusFailed
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	if len(tasks) == 0 {
		log.Printf("[Pipeline] %s: nothing to do", spec.Name)
		return res
	}

	records, failures := executor.Execute(ctx, tasks)
	res.TasksAttempted = len(tasks)
	res.TasksFailed = len(failures)
	res.TasksSucceeded = len(tasks) - len(failures)
	for _, f := range failures {
		if len(res.Errors) < maxReportedErrors {
			res.Errors = append(res.Errors, f.Error())
		}
	}

	if len(records) > 0 {
		outcomes, commitErr := batcher.Commit(ctx, spec.TableName(), partitionKey, records, tailColumns(spec))
		if commitErr != nil {
			res.Status = StatusFailed
			res.Errors = append(res.Errors, commitErr.Error())
			return res
		}
		for _, out := range outcomes {
			if out.Err != nil {
				if len(res.Errors) < maxReportedErrors {
					res.Errors = append(res.Errors, out.Err.Error())
				}
				continue
			}
			res.PartitionsWritten++
			res.RecordsLoaded += out.Records
		}
	}

	// An endpoint that attempted work and got nothing through is a failure
	// even though each task error was isolated.
	if res.TasksAttempted > 0 && res.TasksSucceeded == 0 && res.RecordsLoaded == 0 {
		res.Status = StatusFailed
	}

	return res
}

// tailColumns lists the injected columns (sorted for a stable layout) and
// the system column, in the order they sit at the end of a created table.
func tailColumns(spec *endpoint.Spec) []string {
	cols := make([]string, 0, len(spec.InjectColumns)+1)
	for c := range spec.InjectColumns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return append(cols, fetch.SystemIngestedAt)
}
