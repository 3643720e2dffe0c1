package mps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/truecivic/ingestor/internal/circuitbreaker"
	"github.com/truecivic/ingestor/internal/httpadapter"
	"github.com/truecivic/ingestor/internal/ratelimit"
)

func newTestCore(client *http.Client) *httpadapter.Core {
	return httpadapter.NewCore("mps", client, ratelimit.NewTokenBucket(1000, 1000), circuitbreaker.New("mps", 1000, time.Second), "test-agent")
}

func TestAdapterListWalksPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(`{"results":[{"id":"2","name":"Jane Doe","party":"Ind","riding":"Capital","updated_at":"2026-01-02T00:00:00Z"}],"pagination":{"next_url":""}}`))
			return
		}
		w.Write([]byte(`{"results":[{"id":"1","name":"John Smith","party":"Gov","riding":"Downtown","updated_at":"2026-01-01T00:00:00Z"}],"pagination":{"next_url":"` + r.URL.Path + `?page=2"}}`))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()))
	resp, err := a.List(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != httpadapter.StatusSuccess {
		t.Fatalf("expected success, got %v", resp.Status)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 records across both pages, got %d", len(resp.Data))
	}
	if resp.Data[0].Name != "John Smith" || resp.Data[1].Name != "Jane Doe" {
		t.Fatalf("unexpected records: %+v", resp.Data)
	}
	if calls != 2 {
		t.Fatalf("expected 2 HTTP requests, got %d", calls)
	}
}

func TestAdapterListMarksPartialSuccessOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()))
	resp, err := a.List(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != httpadapter.StatusPartialSuccess {
		t.Fatalf("expected partial success on parse failure, got %v", resp.Status)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].ErrorType != "parse" {
		t.Fatalf("expected one parse error, got %+v", resp.Errors)
	}
}
