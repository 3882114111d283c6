package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchBareArray(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	records, err := c.Fetch(context.Background(), "/accounts", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
}

func TestFetchUnwrapsDataKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"code": "BBCA"}, {"code": "BBRI"}], "meta": {"page": 1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	records, err := c.Fetch(context.Background(), "/stocks", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected data array to unwrap to 2 records, got %d", len(records))
	}
	if records[0]["code"] != "BBCA" {
		t.Errorf("Expected first record code BBCA, got %v", records[0]["code"])
	}
}

func TestFetchSingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 7, "name": "acct"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	records, err := c.Fetch(context.Background(), "/account", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record from single object, got %d", len(records))
	}
}

func TestFetchScalarPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"pong"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	records, err := c.Fetch(context.Background(), "/ping", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 || records[0]["raw_data"] != "pong" {
		t.Errorf("Expected raw_data wrapping, got %v", records)
	}
}

func TestFetchQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	_, err := c.Fetch(context.Background(), "/x", map[string]string{"from": "2024-01-01", "to": "2024-01-01"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotQuery != "from=2024-01-01&to=2024-01-01" {
		t.Errorf("Unexpected query string: %s", gotQuery)
	}
}

func TestFetchRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	_, err := c.Fetch(context.Background(), "/flaky", nil)
	if err == nil {
		t.Fatal("Expected error after exhausted retries, got nil")
	}
	if calls != retryAttempts+1 {
		t.Errorf("Expected %d attempts, got %d", retryAttempts+1, calls)
	}
}

func TestFetchRecoversWithinRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"ok": true}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	records, err := c.Fetch(context.Background(), "/flaky", nil)
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record after recovery, got %d", len(records))
	}
}

func TestFetchMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	if _, err := c.Fetch(context.Background(), "/broken", nil); err == nil {
		t.Fatal("Expected parse error, got nil")
	}
}
