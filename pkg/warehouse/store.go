// Package warehouse is the destination side of the pipeline: a DuckDB-backed
// columnar store and the partition batcher that commits fetched records to it
// as idempotent delete+insert replacements.
package warehouse

import (
	"context"

	"invezgo-pipeline/pkg/schema"
)

// Store is the destination table contract the batcher and the source
// resolver run against. DuckStore is the production implementation.
type Store interface {
	// Query runs a read-only statement and returns all rows as generic records.
	Query(ctx context.Context, sql string) ([]schema.Record, error)
	// TableExists reports whether the table is present in the main schema.
	TableExists(ctx context.Context, table string) (bool, error)
	// TableSchema reads the live column layout of an existing table.
	TableSchema(ctx context.Context, table string) (schema.TableSchema, error)
	// CreateTable creates the table from an inferred schema if it is absent.
	CreateTable(ctx context.Context, table string, ts schema.TableSchema) error
	// Delete removes rows matching the predicate; empty predicate clears the table.
	Delete(ctx context.Context, table, predicate string, args ...any) error
	// BulkInsert appends records in schema field order, returning rows written.
	BulkInsert(ctx context.Context, table string, records []schema.Record, ts schema.TableSchema) (int, error)
}
