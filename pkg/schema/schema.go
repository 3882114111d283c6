// Package schema infers destination table schemas from fetched records and
// memoizes them per table for the duration of a run.
package schema

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// Record is one flat row of fetched payload: column name to scalar value.
type Record map[string]any

// Generic column type names. These map 1:1 onto warehouse column types.
const (
	TypeNull      = "null"
	TypeBool      = "bool"
	TypeInt       = "int"
	TypeFloat     = "float"
	TypeString    = "string"
	TypeTimestamp = "timestamp"
)

// TableSchema describes the columns of one destination table.
type TableSchema struct {
	Types      map[string]string
	FieldOrder []string
}

// Empty reports whether the schema has no columns.
func (s TableSchema) Empty() bool {
	return len(s.FieldOrder) == 0
}

// Manager memoizes one resolved schema per destination table per run.
type Manager struct {
	mu      sync.RWMutex
	schemas map[string]TableSchema
}

func NewManager() *Manager {
	return &Manager{schemas: make(map[string]TableSchema)}
}

// Resolve returns the memoized schema for table, inferring it from records
// on first use. tailColumns are forced to the end of the field order in the
// given sequence (injected columns, then the system column); all remaining
// columns are sorted alphabetically.
func (m *Manager) Resolve(table string, records []Record, tailColumns []string) TableSchema {
	m.mu.RLock()
	cached, ok := m.schemas[table]
	m.mu.RUnlock()
	if ok {
		return cached
	}

	inferred := Infer(records, tailColumns)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, exists := m.schemas[table]; exists {
		return existing
	}
	m.schemas[table] = inferred
	return inferred
}

// Set overrides the memoized schema for a table, used when the destination
// already has the table and its live schema wins over inference.
func (m *Manager) Set(table string, s TableSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[table] = s
}

// Infer derives the least common supertype per column across all records.
// A column that is int in one record and float in another becomes float;
// any disagreement beyond numeric widening collapses to string.
func Infer(records []Record, tailColumns []string) TableSchema {
	types := make(map[string]string)
	for _, rec := range records {
		for col, val := range rec {
			t := typeOf(val)
			if prev, seen := types[col]; seen {
				types[col] = widen(prev, t)
			} else {
				types[col] = t
			}
		}
	}

	// Columns never observed non-null land as strings.
	for col, t := range types {
		if t == TypeNull {
			types[col] = TypeString
		}
	}

	tail := make(map[string]bool, len(tailColumns))
	for _, c := range tailColumns {
		tail[c] = true
	}

	order := make([]string, 0, len(types))
	for col := range types {
		if !tail[col] {
			order = append(order, col)
		}
	}
	sort.Strings(order)
	for _, c := range tailColumns {
		if _, ok := types[c]; ok {
			order = append(order, c)
		}
	}

	return TableSchema{Types: types, FieldOrder: order}
}

// widen returns the least common supertype of two column types.
func widen(a, b string) string {
	if a == b {
		return a
	}
	if a == TypeNull {
		return b
	}
	if b == TypeNull {
		return a
	}
	if (a == TypeInt && b == TypeFloat) || (a == TypeFloat && b == TypeInt) {
		return TypeFloat
	}
	return TypeString
}

func typeOf(v any) string {
	switch val := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32:
		return floatType(float64(val))
	case float64:
		return floatType(val)
	case time.Time:
		return TypeTimestamp
	case string:
		if isRFC3339(val) {
			return TypeTimestamp
		}
		return TypeString
	}

	// Pointers carry the type of what they point at.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return TypeNull
		}
		return typeOf(rv.Elem().Interface())
	}
	return TypeString
}

// floatType keeps JSON-decoded whole numbers as ints: the decoder hands
// every number over as float64.
func floatType(f float64) string {
	if f == float64(int64(f)) {
		return TypeInt
	}
	return TypeFloat
}

func isRFC3339(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
