package schema

import (
	"testing"
	"time"
)

func TestInferSingleRecord(t *testing.T) {
	records := []Record{
		{"name": "BBCA", "volume": float64(1200), "ratio": 1.5, "active": true},
	}

	s := Infer(records, nil)

	if s.Types["name"] != TypeString {
		t.Errorf("Expected string for name, got %s", s.Types["name"])
	}
	if s.Types["volume"] != TypeInt {
		t.Errorf("Expected whole float64 to infer as int, got %s", s.Types["volume"])
	}
	if s.Types["ratio"] != TypeFloat {
		t.Errorf("Expected float for ratio, got %s", s.Types["ratio"])
	}
	if s.Types["active"] != TypeBool {
		t.Errorf("Expected bool for active, got %s", s.Types["active"])
	}
}

func TestInferWidensAcrossRecords(t *testing.T) {
	records := []Record{
		{"price": float64(100), "code": "A"},
		{"price": 100.5, "code": float64(7)},
		{"price": nil, "code": "B"},
	}

	s := Infer(records, nil)

	if s.Types["price"] != TypeFloat {
		t.Errorf("Expected int+float to widen to float, got %s", s.Types["price"])
	}
	if s.Types["code"] != TypeString {
		t.Errorf("Expected mixed string/number to collapse to string, got %s", s.Types["code"])
	}
}

func TestInferNullOnlyColumnBecomesString(t *testing.T) {
	s := Infer([]Record{{"maybe": nil}}, nil)
	if s.Types["maybe"] != TypeString {
		t.Errorf("Expected null-only column to land as string, got %s", s.Types["maybe"])
	}
}

func TestInferTimestampDetection(t *testing.T) {
	s := Infer([]Record{
		{"at": "2024-01-01T10:00:00+07:00", "created": time.Now()},
	}, nil)
	if s.Types["at"] != TypeTimestamp {
		t.Errorf("Expected RFC3339 string to infer as timestamp, got %s", s.Types["at"])
	}
	if s.Types["created"] != TypeTimestamp {
		t.Errorf("Expected time.Time to infer as timestamp, got %s", s.Types["created"])
	}
}

func TestInferFieldOrderTailColumns(t *testing.T) {
	records := []Record{
		{"zeta": 1.0, "alpha": "x", "date": "2024-01-01", "_sys_ingested_at": "2024-01-01T00:00:00+07:00"},
	}

	s := Infer(records, []string{"date", "_sys_ingested_at"})

	want := []string{"alpha", "zeta", "date", "_sys_ingested_at"}
	if len(s.FieldOrder) != len(want) {
		t.Fatalf("Expected %d fields, got %v", len(want), s.FieldOrder)
	}
	for i, col := range want {
		if s.FieldOrder[i] != col {
			t.Errorf("Field %d: expected %s, got %s", i, col, s.FieldOrder[i])
		}
	}
}

func TestManagerMemoizesPerTable(t *testing.T) {
	m := NewManager()

	first := m.Resolve("trades", []Record{{"a": "x"}}, nil)
	second := m.Resolve("trades", []Record{{"b": 1.0}}, nil)

	if len(second.Types) != len(first.Types) {
		t.Error("Expected second Resolve to return the memoized schema")
	}
	if _, ok := second.Types["a"]; !ok {
		t.Error("Expected memoized schema to keep the first inference")
	}

	other := m.Resolve("quotes", []Record{{"b": 1.0}}, nil)
	if _, ok := other.Types["b"]; !ok {
		t.Error("Expected a different table to get its own schema")
	}
}

func TestManagerSetOverrides(t *testing.T) {
	m := NewManager()
	m.Resolve("t", []Record{{"a": "x"}}, nil)

	live := TableSchema{Types: map[string]string{"a": TypeInt}, FieldOrder: []string{"a"}}
	m.Set("t", live)

	got := m.Resolve("t", []Record{{"a": "x"}}, nil)
	if got.Types["a"] != TypeInt {
		t.Errorf("Expected Set to override memoized schema, got %s", got.Types["a"])
	}
}
