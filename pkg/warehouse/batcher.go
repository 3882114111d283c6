package warehouse

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"invezgo-pipeline/pkg/schema"
)

// CommitError marks a failed delete+insert for one partition group. Other
// groups in the same run are unaffected.
type CommitError struct {
	Table string
	Key   map[string]string
	Err   error
}

func (e *CommitError) Error() string {
	if len(e.Key) == 0 {
		return fmt.Sprintf("commit failed for table %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("commit failed for table %s partition %s: %v", e.Table, keyString(e.Key), e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// GroupOutcome reports the result of one partition replacement.
type GroupOutcome struct {
	Key     map[string]string
	Records int
	Err     error
}

// partitionGroup collects every record destined for one delete+insert pair.
type partitionGroup struct {
	cols    []string
	vals    []any
	display map[string]string
	records []schema.Record
}

// Batcher turns a fetched record set into a bounded number of destination
// writes: one delete and one bulk insert per distinct partition key,
// regardless of how many fetch tasks contributed the records.
type Batcher struct {
	store   Store
	schemas *schema.Manager
}

func NewBatcher(store Store, schemas *schema.Manager) *Batcher {
	return &Batcher{store: store, schemas: schemas}
}

// Commit groups records by their partitionKey projection and replaces each
// partition in the destination table. An empty partitionKey yields a single
// group replacing the whole table. tailColumns are the injected and system
// columns forced to the end of a freshly created table's layout.
//
// Group failures are isolated: a failed delete or insert lands in that
// group's outcome and the remaining groups are still attempted.
func (b *Batcher) Commit(
	ctx context.Context,
	table string,
	partitionKey []string,
	records []schema.Record,
	tailColumns []string,
) ([]GroupOutcome, error) {
	if len(records) == 0 {
		return nil, nil
	}

	exists, err := b.store.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("table existence check for %s: %w", table, err)
	}

	ts, err := b.resolveSchema(ctx, table, exists, records, tailColumns)
	if err != nil {
		return nil, err
	}

	groups := groupByPartition(records, partitionKey)
	log.Printf("[Warehouse] %s: %d record(s) in %d partition group(s)", table, len(records), len(groups))

	outcomes := make([]GroupOutcome, 0, len(groups))
	for _, g := range groups {
		outcome := GroupOutcome{Key: g.display}

		// A table created this run is empty; deleting from it is a no-op
		// that only burns a write.
		if exists {
			predicate, delArgs := predicateFor(g.cols, g.vals)
			if delErr := b.store.Delete(ctx, table, predicate, delArgs...); delErr != nil {
				outcome.Err = &CommitError{Table: table, Key: g.display, Err: delErr}
				outcomes = append(outcomes, outcome)
				continue
			}
		}

		n, insErr := b.store.BulkInsert(ctx, table, g.records, ts)
		outcome.Records = n
		if insErr != nil {
			outcome.Err = &CommitError{Table: table, Key: g.display, Err: insErr}
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// resolveSchema validates against the live table layout when the table
// exists, and infers+creates otherwise. The result is memoized per table
// for the run.
func (b *Batcher) resolveSchema(
	ctx context.Context,
	table string,
	exists bool,
	records []schema.Record,
	tailColumns []string,
) (schema.TableSchema, error) {
	if exists {
		live, err := b.store.TableSchema(ctx, table)
		if err != nil {
			return schema.TableSchema{}, fmt.Errorf("reading schema of %s: %w", table, err)
		}
		for col := range records[0] {
			if _, ok := live.Types[col]; !ok {
				log.Printf("[Warehouse] %s: column %s not in destination table, dropping", table, col)
			}
		}
		b.schemas.Set(table, live)
		return live, nil
	}

	inferred := b.schemas.Resolve(table, records, tailColumns)
	if err := b.store.CreateTable(ctx, table, inferred); err != nil {
		return schema.TableSchema{}, fmt.Errorf("creating table %s: %w", table, err)
	}
	return inferred, nil
}

// groupByPartition splits records by their partition-key projection,
// preserving first-appearance order for deterministic commit sequencing.
func groupByPartition(records []schema.Record, partitionKey []string) []*partitionGroup {
	if len(partitionKey) == 0 {
		return []*partitionGroup{{records: records, display: map[string]string{}}}
	}

	byKey := make(map[uint64]*partitionGroup)
	var ordered []*partitionGroup

	for _, rec := range records {
		h := xxhash.New()
		vals := make([]any, 0, len(partitionKey))
		display := make(map[string]string, len(partitionKey))
		for _, col := range partitionKey {
			v := rec[col]
			fmt.Fprint(h, v)
			h.Write([]byte{0})
			vals = append(vals, v)
			display[col] = fmt.Sprintf("%v", v)
		}

		key := h.Sum64()
		g, ok := byKey[key]
		if !ok {
			g = &partitionGroup{cols: partitionKey, vals: vals, display: display}
			byKey[key] = g
			ordered = append(ordered, g)
		}
		g.records = append(g.records, rec)
	}

	return ordered
}

// predicateFor builds the parameterized WHERE body for one partition key
// and the arguments bound to it. A nil partition value compares with
// IS NULL: `= NULL` matches nothing, so equality would leave the previous
// run's rows behind. Empty cols means full-table replacement.
func predicateFor(cols []string, vals []any) (string, []any) {
	if len(cols) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(vals))
	for i, c := range cols {
		if vals[i] == nil {
			parts = append(parts, quoteIdent(c)+" IS NULL")
			continue
		}
		parts = append(parts, quoteIdent(c)+" = ?")
		args = append(args, vals[i])
	}
	return strings.Join(parts, " AND "), args
}

func keyString(key map[string]string) string {
	parts := make([]string, 0, len(key))
	for k, v := range key {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
