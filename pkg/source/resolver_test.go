package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"invezgo-pipeline/pkg/endpoint"
	"invezgo-pipeline/pkg/schema"
)

type fakeQuerier struct {
	rows    []schema.Record
	err     error
	lastSQL string
}

func (f *fakeQuerier) Query(_ context.Context, sql string) ([]schema.Record, error) {
	f.lastSQL = sql
	return f.rows, f.err
}

func TestResolveStaticValuesWin(t *testing.T) {
	q := &fakeQuerier{}
	r := NewResolver(q)

	bc := &endpoint.BatchConfig{
		IterateBy:    "stock_code",
		Values:       []string{"B", "A", "B", "C", "A"},
		SourceTable:  "stocks",
		SourceColumn: "code",
	}

	values, err := r.Resolve(context.Background(), bc)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if q.lastSQL != "" {
		t.Error("Expected static values to skip the warehouse query")
	}

	want := []string{"B", "A", "C"}
	if len(values) != len(want) {
		t.Fatalf("Expected order-preserving dedupe %v, got %v", want, values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("Value %d: expected %s, got %s", i, want[i], values[i])
		}
	}
}

func TestResolveFromTable(t *testing.T) {
	q := &fakeQuerier{rows: []schema.Record{
		{"code": "BBCA"},
		{"code": "BBRI"},
		{"code": nil},
	}}
	r := NewResolver(q)

	bc := &endpoint.BatchConfig{
		IterateBy:    "stock_code",
		SourceTable:  "syariah_stocks",
		SourceColumn: "code",
		SourceFilter: "is_active = true",
	}

	values, err := r.Resolve(context.Background(), bc)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("Expected 2 values (nil dropped), got %v", values)
	}
	if !strings.Contains(q.lastSQL, `SELECT DISTINCT "code"`) {
		t.Errorf("Expected SELECT DISTINCT query, got %s", q.lastSQL)
	}
	if !strings.Contains(q.lastSQL, "is_active = true") {
		t.Errorf("Expected filter in query, got %s", q.lastSQL)
	}
}

func TestResolveQueryFailure(t *testing.T) {
	q := &fakeQuerier{err: errors.New("no such table")}
	r := NewResolver(q)

	bc := &endpoint.BatchConfig{
		IterateBy:    "stock_code",
		SourceTable:  "missing",
		SourceColumn: "code",
	}

	_, err := r.Resolve(context.Background(), bc)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Errorf("Expected ResolutionError, got %T: %v", err, err)
	}
}

func TestResolveRejectsBadIdentifiers(t *testing.T) {
	r := NewResolver(&fakeQuerier{})

	bc := &endpoint.BatchConfig{
		IterateBy:    "stock_code",
		SourceTable:  "stocks; DROP TABLE stocks",
		SourceColumn: "code",
	}

	_, err := r.Resolve(context.Background(), bc)
	if err == nil {
		t.Fatal("Expected error for unsafe identifier, got nil")
	}
}

func TestResolveRejectsBadFilter(t *testing.T) {
	r := NewResolver(&fakeQuerier{})

	bc := &endpoint.BatchConfig{
		IterateBy:    "stock_code",
		SourceTable:  "stocks",
		SourceColumn: "code",
		SourceFilter: "is_active = = true",
	}

	_, err := r.Resolve(context.Background(), bc)
	if err == nil {
		t.Fatal("Expected error for unparsable filter, got nil")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Errorf("Expected ResolutionError, got %T: %v", err, err)
	}
}
