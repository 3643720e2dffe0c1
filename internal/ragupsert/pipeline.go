package ragupsert

import (
	"fmt"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/pkg/textx"
)

// Document is one normalized source document awaiting chunk/embed/upsert.
type Document struct {
	SourceID     string
	Title        string
	Text         string
	Jurisdiction string
	Language     string
}

// Ingestor chunks, embeds, and upserts Documents into the vector index,
// implementing the rag_ingest job's body.
type Ingestor struct {
	Embedder    domain.Embedder
	VectorStore domain.VectorUpserter
	MaxChars    int
	MaxTokens   int
	Dims        int
	Collection  string
}

// NewIngestor constructs an Ingestor with spec defaults.
func NewIngestor(embedder domain.Embedder, store domain.VectorUpserter, maxChars, maxTokens, dims int, collection string) *Ingestor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Ingestor{Embedder: embedder, VectorStore: store, MaxChars: maxChars, MaxTokens: maxTokens, Dims: dims, Collection: collection}
}

// Ingest chunks every document, skips chunks already present in the vector
// store, embeds the remainder in one batch call, and upserts them.
func (ing *Ingestor) Ingest(ctx domain.Context, docs []Document) (int, error) {
	if err := ing.VectorStore.EnsureCollection(ctx, ing.Collection, ing.Dims); err != nil {
		return 0, fmt.Errorf("op=ragupsert.ingest ensure_collection: %w", err)
	}

	var records []domain.ChunkRecord
	for _, d := range docs {
		jurisdiction := NormalizeJurisdiction(d.Jurisdiction)
		language := NormalizeLanguage(d.Language)
		clean := textx.SanitizeText(d.Text)
		chunks := EnforceTokenBound(ChunkText(clean, ing.MaxChars), ing.MaxTokens)
		for _, chunk := range chunks {
			records = append(records, domain.ChunkRecord{
				ID:           fmt.Sprintf("%s:%d", d.SourceID, chunk.Index),
				SourceID:     d.SourceID,
				Title:        d.Title,
				Text:         chunk.Text,
				Jurisdiction: jurisdiction,
				Language:     language,
				Metadata:     map[string]string{"chunk_index": fmt.Sprintf("%d", chunk.Index)},
			})
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	existing, err := ing.VectorStore.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("op=ragupsert.ingest existing_ids: %w", err)
	}

	var pending []domain.ChunkRecord
	var texts []string
	for _, r := range records {
		if existing[r.ID] {
			continue
		}
		pending = append(pending, r)
		texts = append(texts, r.Text)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := ing.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("op=ragupsert.ingest embed: %w", err)
	}
	if err := ing.VectorStore.Upsert(ctx, pending, vectors); err != nil {
		return 0, fmt.Errorf("op=ragupsert.ingest upsert: %w", err)
	}
	return len(pending), nil
}
