package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"invezgo-pipeline/pkg/schema"
)

// DuckStore implements Store on a single DuckDB database file. All tables
// live in one schema, the dataset.
type DuckStore struct {
	db      *sql.DB
	dataset string
	mu      sync.Mutex
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// OpenDuck opens (or creates) the warehouse database file and ensures the
// dataset schema exists. The parent directory is created so a first run on a
// fresh host works.
func OpenDuck(dbPath, dataset string) (*DuckStore, error) {
	if dataset == "" {
		dataset = "main"
	}

	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create warehouse directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?access_mode=read_write", dbPath)
	}

	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		bootQueries := []string{
			fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(dataset)),
			fmt.Sprintf("SET schema='%s'", dataset),
			fmt.Sprintf("SET search_path='%s'", dataset),
		}
		for _, q := range bootQueries {
			if _, err := execer.ExecContext(context.Background(), q, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	return &DuckStore{db: sql.OpenDB(connector), dataset: dataset}, nil
}

func (s *DuckStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Query runs a read statement and materializes every row into a Record.
func (s *DuckStore) Query(ctx context.Context, query string) ([]schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []schema.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(schema.Record, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *DuckStore) TableExists(ctx context.Context, table string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		s.dataset, table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TableSchema reads the live column layout so inserts line up with a table
// created by an earlier run.
func (s *DuckStore) TableSchema(ctx context.Context, table string) (schema.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`,
		s.dataset, table,
	)
	if err != nil {
		return schema.TableSchema{}, err
	}
	defer rows.Close()

	ts := schema.TableSchema{Types: map[string]string{}}
	for rows.Next() {
		var name, duckType string
		if err := rows.Scan(&name, &duckType); err != nil {
			return schema.TableSchema{}, err
		}
		ts.FieldOrder = append(ts.FieldOrder, name)
		ts.Types[name] = genericTypeOf(duckType)
	}
	return ts, rows.Err()
}

func (s *DuckStore) CreateTable(ctx context.Context, table string, ts schema.TableSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns := make([]string, 0, len(ts.FieldOrder))
	for _, field := range ts.FieldOrder {
		columns = append(columns, fmt.Sprintf("%s %s", quoteIdent(field), duckTypeOf(ts.Types[field])))
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", quoteIdent(table), strings.Join(columns, ", "))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return err
	}
	log.Printf("[Warehouse] Table %s created", table)
	return nil
}

// Delete removes the rows matching predicate. An empty predicate is the
// full-table truncate used by onetime replacement.
func (s *DuckStore) Delete(ctx context.Context, table, predicate string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(quoteIdent(table))
	if predicate != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(predicate)
	}

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// BulkInsert appends records through the DuckDB appender. Rows that cannot
// be appended are logged and skipped rather than failing the whole batch.
func (s *DuckStore) BulkInsert(ctx context.Context, table string, records []schema.Record, ts schema.TableSchema) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return 0, nil
	}
	if table == "" {
		return 0, fmt.Errorf("table name cannot be empty")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var appender *duckdb.Appender
	err = conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to assert driver.Conn")
		}
		appender, err = duckdb.NewAppenderFromConn(driverConn, s.dataset, table)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create appender: %w", err)
	}
	defer appender.Close()

	count := 0
	for idx, record := range records {
		values := make([]driver.Value, 0, len(ts.FieldOrder))
		for _, col := range ts.FieldOrder {
			values = append(values, normalizeValue(record[col], ts.Types[col]))
		}
		if err := appender.AppendRow(values...); err != nil {
			log.Printf("[Warehouse] Failed to insert row %d into %s: %v", idx, table, err)
			continue
		}
		count++
	}

	if err := appender.Flush(); err != nil {
		return count, fmt.Errorf("failed to flush appender: %w", err)
	}

	log.Printf("[Warehouse] Inserted %d records into table %s", count, table)
	return count, nil
}

// normalizeValue coerces a record value to what the appender expects for
// the column's generic type.
func normalizeValue(val any, typ string) any {
	switch typ {
	case schema.TypeString:
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	case schema.TypeInt:
		return normalizeInt(val)
	case schema.TypeFloat:
		return normalizeFloat(val)
	case schema.TypeBool:
		return normalizeBool(val)
	case schema.TypeTimestamp:
		return normalizeTimestamp(val)
	default:
		return val
	}
}

func normalizeInt(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

func normalizeFloat(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func normalizeBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

func normalizeTimestamp(val any) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	case int64:
		return time.Unix(v, 0).UTC()
	}
	return time.Time{}
}

var duckTypes = map[string]string{
	schema.TypeString:    "VARCHAR",
	schema.TypeInt:       "BIGINT",
	schema.TypeFloat:     "DOUBLE",
	schema.TypeBool:      "BOOLEAN",
	schema.TypeTimestamp: "TIMESTAMP",
}

func duckTypeOf(generic string) string {
	if t, ok := duckTypes[generic]; ok {
		return t
	}
	return "VARCHAR"
}

// genericTypeOf maps a DuckDB column type back onto the generic type names
// used by schema inference.
func genericTypeOf(duckType string) string {
	switch strings.ToUpper(duckType) {
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT":
		return schema.TypeInt
	case "DOUBLE", "FLOAT", "REAL":
		return schema.TypeFloat
	case "BOOLEAN":
		return schema.TypeBool
	case "TIMESTAMP", "TIMESTAMP WITH TIME ZONE", "DATE":
		return schema.TypeTimestamp
	default:
		return schema.TypeString
	}
}
