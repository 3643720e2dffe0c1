package committees

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
	return httpadapter.NewCore("committees", client, ratelimit.NewTokenBucket(1000, 1000), circuitbreaker.New("committees", 1000, time.Second), "test-agent")
}

func TestListCommitteesPrefersEnglishAndFallsBackToFrench(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"FINA","name_en":"Finance","name_fr":"Finances","acronym":"FINA","updated_at":"2026-01-01T00:00:00Z"},
			{"id":"AGRI","name_en":"","name_fr":"Agriculture","acronym":"AGRI","updated_at":"2026-01-02T00:00:00Z"}
		],"pagination":{"next_url":""}}`))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL, srv.URL+"/evidence", "")
	resp, err := a.ListCommittees(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 committees, got %d", len(resp.Data))
	}
	if resp.Data[0].Name != "Finance" {
		t.Fatalf("expected English name preferred, got %q", resp.Data[0].Name)
	}
	if resp.Data[1].Name != "Agriculture" {
		t.Fatalf("expected French fallback when English is blank, got %q", resp.Data[1].Name)
	}
}

func TestListEvidenceParsesMeetingDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"committee_id":"FINA","meeting_id":"12","meeting_date":"2026-02-15","title_en":"Pre-Budget Hearing","title_fr":""}],"pagination":{"next_url":""}}`))
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL, srv.URL, "")
	resp, err := a.ListEvidence(context.Background(), "FINA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 evidence record, got %d", len(resp.Data))
	}
	rec := resp.Data[0]
	if rec.MeetingID != "12" || rec.Title != "Pre-Budget Hearing" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	want := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	if !rec.MeetingDate.Equal(want) {
		t.Fatalf("expected meeting date %v, got %v", want, rec.MeetingDate)
	}
}

func TestListEvidenceAttachesWitnessesAndDocumentsFromMeetingDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/evidence/FINA/evidence":
			w.Write([]byte(`{"results":[{"committee_id":"FINA","meeting_id":"12","meeting_date":"2026-02-15","title_en":"Pre-Budget Hearing","title_fr":""}],"pagination":{"next_url":""}}`))
		case "/meetings/12/":
			w.Write([]byte(`{"evidence":[{"witness":{"name":"Jane Doe","organization":"Bank of Canada","title":"Governor"}},{"witness":{}}],"documents":[{"title":"Pre-Budget Brief","url":"https://example.com/brief.pdf","doctype":"brief"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := New(newTestCore(srv.Client()), srv.URL, srv.URL+"/evidence", srv.URL+"/meetings")
	resp, err := a.ListEvidence(context.Background(), "FINA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 evidence record, got %d", len(resp.Data))
	}
	rec := resp.Data[0]
	if len(rec.Witnesses) != 1 || rec.Witnesses[0].Name != "Jane Doe" || rec.Witnesses[0].Organization != "Bank of Canada" {
		t.Fatalf("unexpected witnesses: %+v", rec.Witnesses)
	}
	if len(rec.Documents) != 1 || rec.Documents[0].Title != "Pre-Budget Brief" || rec.Documents[0].DocType != "brief" {
		t.Fatalf("unexpected documents: %+v", rec.Documents)
	}
}
