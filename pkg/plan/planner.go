// Package plan expands a declarative endpoint definition into the bounded,
// ordered set of remote fetch tasks for one pipeline run. All placeholder
// resolution happens here; a task that leaves the planner is fully concrete.
package plan

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"invezgo-pipeline/pkg/endpoint"
)

// Task is one fully-resolved fetch: concrete path, concrete query
// parameters, and the injected column values to stamp on every record it
// yields. Tasks are independent of each other and consumed exactly once.
type Task struct {
	Endpoint string
	Path     string
	Params   map[string]string
	Value    string // iteration value, "" when the endpoint has none
	Date     string // YYYY-MM-DD, "" when date iteration is off
	Inject   map[string]string
}

// ValueSource resolves the iteration value set for a batch endpoint.
type ValueSource interface {
	Resolve(ctx context.Context, bc *endpoint.BatchConfig) ([]string, error)
}

var placeholderRe = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// Build produces the ordered task list for one endpoint: the cross product
// of iteration values (outer) and calendar days (inner). Onetime endpoints
// yield exactly one task. Unresolved placeholders are rejected here, not at
// request time.
func Build(ctx context.Context, spec *endpoint.Spec, args DateArgs, src ValueSource) ([]Task, error) {
	if spec.Batch == nil {
		task, err := resolveTask(spec, "", "")
		if err != nil {
			return nil, err
		}
		return []Task{task}, nil
	}

	values, err := src.Resolve(ctx, spec.Batch)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		log.Printf("[Planner] No iteration values for %s, nothing to fetch", spec.Name)
		return nil, nil
	}

	dates := []string{""}
	if spec.DateEnabled() {
		w, werr := resolveWindow(spec, args, time.Now())
		if werr != nil {
			return nil, werr
		}
		dates = w.days()
		log.Printf("[Planner] %s: window split into %d day(s)", spec.Name, len(dates))
	}

	tasks := make([]Task, 0, len(values)*len(dates))
	for _, value := range values {
		for _, date := range dates {
			task, terr := resolveTask(spec, value, date)
			if terr != nil {
				return nil, terr
			}
			tasks = append(tasks, task)
		}
	}

	log.Printf("[Planner] %s: %d value(s) x %d day(s) = %d task(s)", spec.Name, len(values), len(dates), len(tasks))
	return tasks, nil
}

// resolveTask substitutes every placeholder for one (value, date) pair and
// fails on any placeholder left unbound.
func resolveTask(spec *endpoint.Spec, value, date string) (Task, error) {
	bindings := map[string]string{}
	for k, v := range spec.PathVariables {
		bindings[k] = v
	}
	if value != "" && spec.Batch != nil {
		bindings[spec.Batch.IterateBy] = value
	}
	if date != "" {
		bindings["date"] = date
	}

	path, err := substitute(spec.Name, "path", spec.Path, bindings)
	if err != nil {
		return Task{}, err
	}

	params := make(map[string]string, len(spec.Params))
	for k, v := range spec.Params {
		resolved, perr := substitute(spec.Name, "param "+k, v, bindings)
		if perr != nil {
			return Task{}, perr
		}
		params[k] = resolved
	}

	inject := make(map[string]string, len(spec.InjectColumns))
	for col, tpl := range spec.InjectColumns {
		resolved, ierr := substitute(spec.Name, "inject_columns."+col, tpl, bindings)
		if ierr != nil {
			return Task{}, ierr
		}
		inject[col] = resolved
	}

	return Task{
		Endpoint: spec.Name,
		Path:     path,
		Params:   params,
		Value:    value,
		Date:     date,
		Inject:   inject,
	}, nil
}

func substitute(endpointName, field, template string, bindings map[string]string) (string, error) {
	out := template
	for k, v := range bindings {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if leftover := placeholderRe.FindString(out); leftover != "" {
		return "", &endpoint.ConfigError{
			Endpoint: endpointName,
			Reason:   fmt.Sprintf("unresolved placeholder %s in %s", leftover, field),
		}
	}
	return out, nil
}
