package hansard

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
	return httpadapter.NewCore("hansard", client, ratelimit.NewTokenBucket(1000, 1000), circuitbreaker.New("hansard", 1000, time.Second), "test-agent")
}

const xmlDecl = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
const hansardEN = xmlDecl + `<Hansard><Debate><SubjectOfBusiness><Intervention id="p1">Hello there.</Intervention><Intervention id="p2">Second line.</Intervention></SubjectOfBusiness></Debate></Hansard>`
const hansardFRMatching = xmlDecl + `<Hansard><Debate><SubjectOfBusiness><Intervention id="p1">Bonjour.</Intervention><Intervention id="p2">Deuxieme ligne.</Intervention></SubjectOfBusiness></Debate></Hansard>`
const hansardFRMismatched = xmlDecl + `<Hansard><Debate><SubjectOfBusiness><Intervention id="other">Bonjour.</Intervention></SubjectOfBusiness></Debate></Hansard>`

func TestFetchCrossChecksAndJoinsBilingualText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Path == "/fr/44/1/doc1" {
			w.Write([]byte(hansardFRMatching))
			return
		}
		w.Write([]byte(hansardEN))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), nil, srv.URL+"/en", srv.URL+"/fr")
	sittingDate := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	rec, _, err := a.Fetch(context.Background(), 44, 1, "doc1", sittingDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.DocumentID != "doc1" || rec.Parliament != 44 || rec.Session != 1 {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if rec.EnglishText == "" || rec.FrenchText == "" {
		t.Fatalf("expected both bilingual texts to be populated: %+v", rec)
	}
	if len(rec.ParagraphIDs) != 2 {
		t.Fatalf("expected 2 paragraph ids, got %d", len(rec.ParagraphIDs))
	}
}

func TestFetchRejectsSittingBelowMatchThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Path == "/fr/44/1/doc1" {
			w.Write([]byte(hansardFRMismatched))
			return
		}
		w.Write([]byte(hansardEN))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), nil, srv.URL+"/en", srv.URL+"/fr")
	_, _, err := a.Fetch(context.Background(), 44, 1, "doc1", time.Now())
	if err == nil {
		t.Fatalf("expected cross-check failure below match threshold")
	}
}

func TestFetchRejectsHTMLMaintenancePageServedWithStatus200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte("<!DOCTYPE html><html><body>Site under maintenance</body></html>"))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), nil, srv.URL+"/en", srv.URL+"/fr")
	_, _, err := a.Fetch(context.Background(), 44, 1, "doc1", time.Now())
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure for an HTML body despite an XML content-type header, got %v", err)
	}
}

func TestFetchReturnsNoDocumentOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), nil, srv.URL+"/en", srv.URL+"/fr")
	_, _, err := a.Fetch(context.Background(), 44, 1, "missing", time.Now())
	if err == nil {
		t.Fatalf("expected an error for a 404 sitting")
	}
	if !errors.Is(err, domain.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}
