// Package committees implements the C4 committee and committee-evidence
// source adapters, ported from original_source/parliament/imports/committees.py.
package committees

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
)

// Committee is one normalized committee record, language-polymorphic: every
// text field prefers English and falls back to French when English is
// blank, matching the upstream API's inconsistent bilingual population.
type Committee struct {
	ID        string
	Name      string
	Acronym   string
	UpdatedAt time.Time
}

// Evidence is one normalized committee meeting/evidence record.
type Evidence struct {
	CommitteeID string
	MeetingID   string
	MeetingDate time.Time
	Title       string
	Witnesses   []Witness
	Documents   []Document
}

// Witness is one witness who appeared at a committee meeting, attached via
// the per-meeting detail fetch.
type Witness struct {
	Name         string
	Organization string
	Title        string
}

// Document is one document tabled at a committee meeting, attached via the
// per-meeting detail fetch.
type Document struct {
	Title   string
	URL     string
	DocType string
}

type committeeListJSON struct {
	Results    []committeeItem `json:"results"`
	Pagination struct {
		NextURL string `json:"next_url"`
	} `json:"pagination"`
}

type committeeItem struct {
	ID        string `json:"id"`
	NameEN    string `json:"name_en"`
	NameFR    string `json:"name_fr"`
	Acronym   string `json:"acronym"`
	UpdatedAt string `json:"updated_at"`
}

type evidenceListJSON struct {
	Results    []evidenceItem `json:"results"`
	Pagination struct {
		NextURL string `json:"next_url"`
	} `json:"pagination"`
}

type evidenceItem struct {
	CommitteeID string `json:"committee_id"`
	MeetingID   string `json:"meeting_id"`
	MeetingDate string `json:"meeting_date"`
	TitleEN     string `json:"title_en"`
	TitleFR     string `json:"title_fr"`
}

// meetingDetailJSON mirrors the per-meeting detail payload shape committee_
// normalizer.py's enrich_committee_meeting_detail reads witnesses and
// documents out of.
type meetingDetailJSON struct {
	Evidence []struct {
		Witness struct {
			Name         string `json:"name"`
			Organization string `json:"organization"`
			Title        string `json:"title"`
		} `json:"witness"`
	} `json:"evidence"`
	Documents []struct {
		Title        string `json:"title"`
		URL          string `json:"url"`
		DocType      string `json:"doctype"`
		DocumentType string `json:"document_type"`
	} `json:"documents"`
}

// Adapter fetches committees and their evidence, each paginated via
// pagination.next_url. MeetingDetailURLBase, when set, is used to fetch and
// attach witness/document metadata to each evidence record.
type Adapter struct {
	Core                 *httpadapter.Core
	CommitteesURL        string
	EvidenceURLBase      string
	MeetingDetailURLBase string
}

// New constructs a committees Adapter. meetingDetailURLBase may be empty, in
// which case ListEvidence skips the per-meeting detail fetch.
func New(core *httpadapter.Core, committeesURL, evidenceURLBase, meetingDetailURLBase string) *Adapter {
	return &Adapter{Core: core, CommitteesURL: committeesURL, EvidenceURLBase: evidenceURLBase, MeetingDetailURLBase: meetingDetailURLBase}
}

// ListCommittees walks every page of the committee listing.
func (a *Adapter) ListCommittees(ctx domain.Context) (httpadapter.Response[Committee], error) {
	resp := httpadapter.Response[Committee]{Status: httpadapter.StatusSuccess, Source: "committees", FetchTimestamp: time.Now().UTC()}

	url := a.CommitteesURL
	for url != "" {
		fr, err := a.Core.Get(ctx, url, "committees:"+url)
		if err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "http", Message: err.Error(), Retryable: true,
			})
			break
		}
		resp.Metrics.HTTPRequestCount += fr.Metrics.HTTPRequestCount
		if fr.NotModified {
			break
		}

		var page committeeListJSON
		if err := json.Unmarshal(fr.Body, &page); err != nil {
			return resp, fmt.Errorf("op=committees.list parse: %w", domain.ErrParseFailure)
		}
		for _, c := range page.Results {
			updatedAt, _ := time.Parse(time.RFC3339, c.UpdatedAt)
			resp.Data = append(resp.Data, Committee{
				ID:        c.ID,
				Name:      normalizeLanguageField(c.NameEN, c.NameFR),
				Acronym:   c.Acronym,
				UpdatedAt: updatedAt,
			})
			resp.Metrics.RecordsSucceeded++
		}
		resp.Metrics.RecordsAttempted += len(page.Results)
		url = page.Pagination.NextURL
	}
	return resp, nil
}

// ListEvidence walks every page of meeting evidence for one committee.
func (a *Adapter) ListEvidence(ctx domain.Context, committeeID string) (httpadapter.Response[Evidence], error) {
	resp := httpadapter.Response[Evidence]{Status: httpadapter.StatusSuccess, Source: "committee_evidence", FetchTimestamp: time.Now().UTC()}

	url := fmt.Sprintf("%s/%s/evidence", a.EvidenceURLBase, committeeID)
	for url != "" {
		fr, err := a.Core.Get(ctx, url, "committee_evidence:"+url)
		if err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "http", Message: err.Error(), Retryable: true,
			})
			break
		}
		resp.Metrics.HTTPRequestCount += fr.Metrics.HTTPRequestCount
		if fr.NotModified {
			break
		}

		var page evidenceListJSON
		if err := json.Unmarshal(fr.Body, &page); err != nil {
			return resp, fmt.Errorf("op=committees.list_evidence parse: %w", domain.ErrParseFailure)
		}
		for _, e := range page.Results {
			meetingDate, _ := time.Parse("2006-01-02", e.MeetingDate)
			rec := Evidence{
				CommitteeID: e.CommitteeID,
				MeetingID:   e.MeetingID,
				MeetingDate: meetingDate,
				Title:       normalizeLanguageField(e.TitleEN, e.TitleFR),
			}
			if a.MeetingDetailURLBase != "" {
				detail, err := a.fetchMeetingDetail(ctx, e.MeetingID)
				if err != nil {
					resp.Errors = append(resp.Errors, httpadapter.AdapterError{
						Timestamp: time.Now().UTC(), ErrorType: "meeting_detail", Message: err.Error(), Retryable: true,
						Context: map[string]string{"meeting_id": e.MeetingID},
					})
				} else {
					rec.Witnesses, rec.Documents = witnessesAndDocuments(detail)
				}
			}
			resp.Data = append(resp.Data, rec)
			resp.Metrics.RecordsSucceeded++
		}
		resp.Metrics.RecordsAttempted += len(page.Results)
		url = page.Pagination.NextURL
	}
	return resp, nil
}

// fetchMeetingDetail fetches the per-meeting detail payload that carries
// witness and document metadata not present on the evidence listing page.
func (a *Adapter) fetchMeetingDetail(ctx domain.Context, meetingID string) (meetingDetailJSON, error) {
	url := fmt.Sprintf("%s/%s/", a.MeetingDetailURLBase, meetingID)
	fr, err := a.Core.Get(ctx, url, "committee_evidence:detail:"+meetingID)
	if err != nil {
		return meetingDetailJSON{}, err
	}
	if fr.NotModified || len(fr.Body) == 0 {
		return meetingDetailJSON{}, nil
	}
	var detail meetingDetailJSON
	if err := json.Unmarshal(fr.Body, &detail); err != nil {
		return meetingDetailJSON{}, fmt.Errorf("op=committees.fetch_meeting_detail meeting=%s: %w", meetingID, domain.ErrParseFailure)
	}
	return detail, nil
}

// witnessesAndDocuments extracts the witness and document entries out of a
// meeting detail payload, matching committee_normalizer.py's
// enrich_committee_meeting_detail.
func witnessesAndDocuments(detail meetingDetailJSON) ([]Witness, []Document) {
	var witnesses []Witness
	for _, e := range detail.Evidence {
		if e.Witness.Name == "" {
			continue
		}
		witnesses = append(witnesses, Witness{
			Name:         e.Witness.Name,
			Organization: e.Witness.Organization,
			Title:        e.Witness.Title,
		})
	}
	var documents []Document
	for _, d := range detail.Documents {
		docType := d.DocType
		if docType == "" {
			docType = d.DocumentType
		}
		documents = append(documents, Document{Title: d.Title, URL: d.URL, DocType: docType})
	}
	return witnesses, documents
}

// normalizeLanguageField prefers English, falling back to French when
// English is blank — the API populates bilingual fields inconsistently
// across committee types.
func normalizeLanguageField(en, fr string) string {
	if en != "" {
		return en
	}
	return fr
}
