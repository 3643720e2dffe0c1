// Package hansard implements the C4 Hansard debate-transcript source
// adapter, ported from original_source/parliament/imports/hansard_downloader.py.
package hansard

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
)

// Record is one normalized Hansard debate document.
type Record struct {
	Parliament   int
	Session      int
	SittingDate  time.Time
	DocumentID   string
	EnglishText  string
	FrenchText   string
	ParagraphIDs []string
}

// hansardXML mirrors the fields hansard_downloader.py's cross-check reads
// out of the publication XML feed.
type hansardXML struct {
	XMLName    xml.Name `xml:"Hansard"`
	ExtractedItems []paragraphXML `xml:"Debate>SubjectOfBusiness>Intervention"`
}

type paragraphXML struct {
	ID   string `xml:"id,attr"`
	Text string `xml:",chardata"`
}

// matchThreshold is the minimum fraction of EN paragraph ids that must also
// appear in the FR document before a sitting is accepted as cross-checked.
const matchThreshold = 0.95

// Adapter fetches and cross-checks the bilingual Hansard transcript for a
// sitting date.
type Adapter struct {
	Core         *httpadapter.Core
	Watermarks   domain.WatermarkStore
	BaseURLEN    string
	BaseURLFR    string
}

// New constructs a hansard Adapter.
func New(core *httpadapter.Core, watermarks domain.WatermarkStore, baseURLEN, baseURLFR string) *Adapter {
	return &Adapter{Core: core, Watermarks: watermarks, BaseURLEN: baseURLEN, BaseURLFR: baseURLFR}
}

// Fetch downloads, for one sitting identified by (parliament, session, docID),
// both the English and French transcripts, cross-checks paragraph ids, and
// returns a single normalized Record, or domain.ErrNoDocument if the source
// returned 404 for either language.
func (a *Adapter) Fetch(ctx domain.Context, parliament, session int, docID string, sittingDate time.Time) (Record, httpadapter.Metrics, error) {
	enURL := fmt.Sprintf("%s/%d/%d/%s", a.BaseURLEN, parliament, session, docID)
	frURL := fmt.Sprintf("%s/%d/%d/%s", a.BaseURLFR, parliament, session, docID)

	enFetch, err := a.Core.Get(ctx, enURL, "hansard:en:"+docID)
	if err != nil {
		return Record{}, enFetch.Metrics, err
	}
	if enFetch.StatusCode == http.StatusNotFound {
		return Record{}, enFetch.Metrics, fmt.Errorf("op=hansard.fetch doc=%s: %w", docID, domain.ErrNoDocument)
	}
	frFetch, err := a.Core.Get(ctx, frURL, "hansard:fr:"+docID)
	if err != nil {
		return Record{}, frFetch.Metrics, err
	}
	if frFetch.StatusCode == http.StatusNotFound {
		return Record{}, frFetch.Metrics, fmt.Errorf("op=hansard.fetch doc=%s: %w", docID, domain.ErrNoDocument)
	}

	enDoc, err := parseHansard(enFetch.Body)
	if err != nil {
		return Record{}, enFetch.Metrics, fmt.Errorf("op=hansard.fetch doc=%s parse_en: %w", docID, err)
	}
	frDoc, err := parseHansard(frFetch.Body)
	if err != nil {
		return Record{}, enFetch.Metrics, fmt.Errorf("op=hansard.fetch doc=%s parse_fr: %w", docID, err)
	}

	matched, ratio := crossCheckParagraphIDs(enDoc, frDoc)
	if !matched {
		return Record{}, enFetch.Metrics, fmt.Errorf(
			"op=hansard.fetch doc=%s match_ratio=%.3f below threshold: %w", docID, ratio, domain.ErrParseFailure)
	}

	rec := Record{
		Parliament:  parliament,
		Session:     session,
		SittingDate: sittingDate,
		DocumentID:  docID,
		EnglishText: joinText(enDoc),
		FrenchText:  joinText(frDoc),
	}
	for _, p := range enDoc.ExtractedItems {
		rec.ParagraphIDs = append(rec.ParagraphIDs, p.ID)
	}
	return rec, enFetch.Metrics, nil
}

// parseHansard sniffs the response body's content before parsing: the
// publication feed occasionally serves an HTML maintenance page with a 200
// status instead of the expected XML, which would otherwise surface as a
// confusing XML syntax error rather than the content mismatch it is.
func parseHansard(body []byte) (hansardXML, error) {
	if mime := mimetype.Detect(body); !mime.Is("text/xml") && !mime.Is("application/xml") {
		return hansardXML{}, fmt.Errorf("op=hansard.parse mime=%s: %w", mime.String(), domain.ErrParseFailure)
	}
	var doc hansardXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return hansardXML{}, domain.ErrParseFailure
	}
	return doc, nil
}

// crossCheckParagraphIDs reports whether at least matchThreshold of the
// English paragraph @id attributes also occur in the French document.
func crossCheckParagraphIDs(en, fr hansardXML) (bool, float64) {
	if len(en.ExtractedItems) == 0 {
		return false, 0
	}
	frIDs := make(map[string]bool, len(fr.ExtractedItems))
	for _, p := range fr.ExtractedItems {
		frIDs[p.ID] = true
	}
	matched := 0
	for _, p := range en.ExtractedItems {
		if frIDs[p.ID] {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(en.ExtractedItems))
	return ratio >= matchThreshold, ratio
}

func joinText(doc hansardXML) string {
	parts := make([]string, 0, len(doc.ExtractedItems))
	for _, p := range doc.ExtractedItems {
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n")
}
