package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"printedge/config"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.BackendConfig{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		RestaurantID: "rest-1",
		Timeout:      2 * time.Second,
	})
}

func TestFetchPendingQueryAndHeaders(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/orders" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		w.Write([]byte(`[{"id":"o1","order_type":"counter","total":12.5,"order_items":[]}]`))
	}))
	defer srv.Close()

	batch, err := testClient(srv.URL).FetchPending(context.Background())
	if err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "o1" {
		t.Fatalf("batch = %+v", batch)
	}

	wants := map[string]string{
		"select":        "*,order_items(*)",
		"restaurant_id": "eq.rest-1",
		"print_status":  "eq.pending",
		"order":         "created_at.asc",
	}
	for k, want := range wants {
		if gotQuery[k] != want {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], want)
		}
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("apikey = %q", gotAPIKey)
	}
}

func TestFetchPendingSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"good-1","total":10},
			{"id":"bad-1","total":"not-a-number"},
			{"total":5},
			{"id":"good-2","total":20}
		]`))
	}))
	defer srv.Close()

	batch, err := testClient(srv.URL).FetchPending(context.Background())
	if err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch len = %d, want 2 (malformed rows skipped)", len(batch))
	}
	if batch[0].ID != "good-1" || batch[1].ID != "good-2" {
		t.Errorf("batch order = %s, %s", batch[0].ID, batch[1].ID)
	}
}

func TestFetchPendingRemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchPending(context.Background())
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error type = %T", err)
	}
	if f.Kind != RemoteRejected || f.Status != http.StatusForbidden {
		t.Errorf("failure = kind %v status %d, want RemoteRejected 403", f.Kind, f.Status)
	}
}

func TestFetchPendingUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := testClient(srv.URL).FetchPending(context.Background())
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error type = %T", err)
	}
	if f.Kind != Unavailable {
		t.Errorf("failure kind = %v, want Unavailable", f.Kind)
	}
}

func TestMarkPrintedRequest(t *testing.T) {
	var gotMethod, gotQuery, gotPrefer string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotPrefer = r.Header.Get("Prefer")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).MarkPrinted(context.Background(), "o-42"); err != nil {
		t.Fatalf("MarkPrinted: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotQuery != "id=eq.o-42" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotPrefer != "return=minimal" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if gotBody["print_status"] != "printed" {
		t.Errorf("body print_status = %q", gotBody["print_status"])
	}
	if _, err := time.Parse(time.RFC3339, gotBody["printed_at"]); err != nil {
		t.Errorf("printed_at %q not RFC3339: %v", gotBody["printed_at"], err)
	}

	// Idempotent: a second mark is the same overwrite, no error
	if err := testClient(srv.URL).MarkPrinted(context.Background(), "o-42"); err != nil {
		t.Fatalf("second MarkPrinted: %v", err)
	}
}

func TestMarkPrintedRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer srv.Close()

	err := testClient(srv.URL).MarkPrinted(context.Background(), "o-42")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("error type = %T", err)
	}
	if f.Kind != RemoteRejected || f.Status != http.StatusConflict {
		t.Errorf("failure = kind %v status %d", f.Kind, f.Status)
	}
}

func TestFetchOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchOrder(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing order")
	}
}

func TestLogPrintEventBestEffort(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.LogPrintEvent(context.Background(), "o-9", "print", "printed", "")
	if gotPath != "/rest/v1/print_logs" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["restaurant_id"] != "rest-1" || gotBody["order_id"] != "o-9" {
		t.Errorf("body = %+v", gotBody)
	}

	// A dead backend must not panic or error out
	c2 := testClient("http://127.0.0.1:1")
	c2.logf = func(string, ...interface{}) {}
	c2.LogPrintEvent(context.Background(), "o-9", "print", "printed", "")
}
