// Package source resolves the iteration value set for a batch endpoint,
// either from a static list or from a reference table in the warehouse.
package source

import (
	"context"
	"fmt"
	"log"
	"regexp"

	pg "github.com/pganalyze/pg_query_go/v6"

	"invezgo-pipeline/pkg/endpoint"
	"invezgo-pipeline/pkg/schema"
)

// ResolutionError aborts the endpoint the failing batch config belongs to,
// never the whole run.
type ResolutionError struct {
	Table string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving values from %s: %v", e.Table, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Querier is the read-only slice of the warehouse the resolver needs.
type Querier interface {
	Query(ctx context.Context, sql string) ([]schema.Record, error)
}

type Resolver struct {
	q Querier
}

func NewResolver(q Querier) *Resolver {
	return &Resolver{q: q}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Resolve returns the ordered, deduplicated value set. A static values list
// wins over a table source when both are configured.
func (r *Resolver) Resolve(ctx context.Context, bc *endpoint.BatchConfig) ([]string, error) {
	if len(bc.Values) > 0 {
		return dedupe(bc.Values), nil
	}
	if bc.SourceTable == "" || bc.SourceColumn == "" {
		return nil, nil
	}
	return r.queryValues(ctx, bc)
}

func (r *Resolver) queryValues(ctx context.Context, bc *endpoint.BatchConfig) ([]string, error) {
	query, err := buildQuery(bc)
	if err != nil {
		return nil, &ResolutionError{Table: bc.SourceTable, Err: err}
	}

	log.Printf("[Source] Querying values from %s.%s", bc.SourceTable, bc.SourceColumn)
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, &ResolutionError{Table: bc.SourceTable, Err: err}
	}

	values := make([]string, 0, len(rows))
	for _, row := range rows {
		v, ok := row[bc.SourceColumn]
		if !ok || v == nil {
			continue
		}
		values = append(values, fmt.Sprintf("%v", v))
	}

	log.Printf("[Source] Found %d value(s) in %s", len(values), bc.SourceTable)
	return dedupe(values), nil
}

// buildQuery assembles the SELECT DISTINCT statement and verifies it parses
// before it ever reaches the warehouse, so a bad source_filter fails the
// endpoint at plan time instead of mid-run.
func buildQuery(bc *endpoint.BatchConfig) (string, error) {
	if !identRe.MatchString(bc.SourceTable) {
		return "", fmt.Errorf("invalid source_table identifier %q", bc.SourceTable)
	}
	if !identRe.MatchString(bc.SourceColumn) {
		return "", fmt.Errorf("invalid source_column identifier %q", bc.SourceColumn)
	}

	where := fmt.Sprintf("%q IS NOT NULL", bc.SourceColumn)
	if bc.SourceFilter != "" {
		where = bc.SourceFilter
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT %q FROM %q WHERE %s ORDER BY %q`,
		bc.SourceColumn, bc.SourceTable, where, bc.SourceColumn,
	)

	if _, err := pg.Parse(query); err != nil {
		return "", fmt.Errorf("invalid source_filter %q: %w", bc.SourceFilter, err)
	}
	return query, nil
}

// dedupe removes duplicates while preserving first-appearance order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
