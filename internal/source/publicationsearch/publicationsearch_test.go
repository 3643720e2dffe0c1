package publicationsearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/truecivic/ingestor/internal/circuitbreaker"
	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
	"github.com/truecivic/ingestor/internal/ratelimit"
)

func newTestCore(client *http.Client) *httpadapter.Core {
	return httpadapter.NewCore("publicationsearch", client, ratelimit.NewTokenBucket(1000, 1000), circuitbreaker.New("publicationsearch", 1000, time.Second), "test-agent")
}

func TestSearchDedupsByDerivedPublicationID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			// Page 2 repeats publication 111, which must stop pagination
			// and be excluded from the result set.
			w.Write([]byte(`{"results":[{"url":"https://example.com/publication/111","title":"Repeat","published_at":"2026-01-02T00:00:00Z"},{"url":"https://example.com/publication/222","title":"New","published_at":"2026-01-03T00:00:00Z"}],"pagination":{"next_url":""}}`))
			return
		}
		w.Write([]byte(`{"results":[{"url":"https://example.com/publication/111","title":"First","published_at":"2026-01-01T00:00:00Z"}],"pagination":{"next_url":"` + r.URL.Path + `?page=2"}}`))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL)
	resp, err := a.Search(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Page 1 yields 111; page 2 re-sees 111 (skipped as a dup, which also
	// flags pagination to stop after this page) but still appends the new
	// 222 hit found later in the same page.
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 deduplicated records, got %d: %+v", len(resp.Data), resp.Data)
	}
	ids := map[string]bool{resp.Data[0].PublicationID: true, resp.Data[1].PublicationID: true}
	if !ids["111"] || !ids["222"] {
		t.Fatalf("expected publication ids 111 and 222, got %+v", resp.Data)
	}
}

func TestDerivePDFURLRewritesNonHansardURLs(t *testing.T) {
	got := derivePDFURL("https://example.com/publication/111")
	want := "https://example.com/publication/111.PDF"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	already := "https://example.com/HAN123-E.PDF"
	if got := derivePDFURL(already); got != already {
		t.Fatalf("expected existing Hansard PDF URL unchanged, got %q", got)
	}
}

func TestFetchPDFAcceptsGenuinePDFBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< >>\nendobj\n"))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL)
	body, err := a.FetchPDF(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected non-empty PDF body")
	}
}

func TestFetchPDFRejectsHTMLMasqueradingAsPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not found</body></html>"))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL)
	_, err := a.FetchPDF(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestDerivePublicationIDExtractsTrailingDigits(t *testing.T) {
	if got := derivePublicationID("https://example.com/publication/4567#section2"); got != "4567" {
		t.Fatalf("expected 4567, got %q", got)
	}
	if got := derivePublicationID("https://example.com/publication/"); got != "" {
		t.Fatalf("expected empty id for a URL with no trailing digits, got %q", got)
	}
}
