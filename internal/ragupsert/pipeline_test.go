package ragupsert

import (
	"context"
	"testing"

	"github.com/truecivic/ingestor/internal/domain"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeVectorStore struct {
	existing  map[string]bool
	upserted  []domain.ChunkRecord
	ensured   bool
}

func (f *fakeVectorStore) EnsureCollection(ctx domain.Context, name string, dims int) error {
	f.ensured = true
	return nil
}

func (f *fakeVectorStore) ExistingIDs(ctx domain.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = f.existing[id]
	}
	return out, nil
}

func (f *fakeVectorStore) Upsert(ctx domain.Context, records []domain.ChunkRecord, vectors [][]float32) error {
	f.upserted = append(f.upserted, records...)
	return nil
}

func TestIngestorSkipsAlreadyIndexedChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{existing: map[string]bool{"doc-1:0": true}}
	ing := NewIngestor(embedder, store, 800, 512, 3, "test-collection")

	n, err := ing.Ingest(context.Background(), []Document{
		{SourceID: "doc-1", Title: "T", Text: "a short document body.", Jurisdiction: "federal", Language: "en"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 new chunks upserted since the only chunk already exists, got %d", n)
	}
	if !store.ensured {
		t.Fatalf("expected EnsureCollection to be called")
	}
	if len(embedder.calls) != 0 {
		t.Fatalf("expected no embedding calls for already-indexed chunks")
	}
}

func TestIngestorEmbedsAndUpsertsNewChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{existing: map[string]bool{}}
	ing := NewIngestor(embedder, store, 800, 512, 3, "test-collection")

	n, err := ing.Ingest(context.Background(), []Document{
		{SourceID: "doc-2", Title: "T", Text: "a short document body.", Jurisdiction: "senate", Language: "fr"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new chunk upserted, got %d", n)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected 1 record upserted, got %d", len(store.upserted))
	}
	rec := store.upserted[0]
	if rec.Jurisdiction != "senate" || rec.Language != "fr" {
		t.Fatalf("expected normalized jurisdiction/language preserved, got %+v", rec)
	}
	if rec.ID != "doc-2:0" {
		t.Fatalf("expected chunk ID doc-2:0, got %s", rec.ID)
	}
}

func TestIngestorNoDocumentsIsNoOp(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{existing: map[string]bool{}}
	ing := NewIngestor(embedder, store, 800, 512, 3, "test-collection")

	n, err := ing.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 chunks for no documents, got %d", n)
	}
}
