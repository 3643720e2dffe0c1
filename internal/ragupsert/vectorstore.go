package ragupsert

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/truecivic/ingestor/internal/domain"
)

// QdrantStore implements domain.VectorUpserter against a Qdrant HTTP
// endpoint, adapted from the vector client's REST wire format onto the
// rag_ingest upsert contract (points keyed by a stable hash of each chunk
// record's ID rather than caller-supplied ids, so re-ingesting the same
// source document overwrites its chunks at the same positions instead of
// duplicating them).
type QdrantStore struct {
	baseURL           string
	apiKey            string
	distance          string
	defaultCollection string
	httpClient        *http.Client
}

// NewQdrantStore constructs a QdrantStore. distance defaults to "Cosine".
// defaultCollection, when set, is used for every Upsert call regardless of
// the records' jurisdiction, keeping a single collection per deployment.
func NewQdrantStore(baseURL, apiKey, distance, defaultCollection string) *QdrantStore {
	if distance == "" {
		distance = "Cosine"
	}
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("qdrant %s %s", r.Method, r.URL.Path)
		}),
	)
	return &QdrantStore{
		baseURL:           baseURL,
		apiKey:            apiKey,
		distance:          distance,
		defaultCollection: defaultCollection,
		httpClient:        &http.Client{Timeout: 10 * time.Second, Transport: transport},
	}
}

// EnsureCollection creates the collection if it is not already present.
func (c *QdrantStore) EnsureCollection(ctx domain.Context, name string, dims int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, name), nil)
	if err != nil {
		return fmt.Errorf("op=vectorstore.ensure_collection: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=vectorstore.ensure_collection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	payload := map[string]any{"vectors": map[string]any{"size": dims, "distance": c.distance}}
	b, _ := json.Marshal(payload)
	req, err = http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", c.baseURL, name), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("op=vectorstore.ensure_collection.create: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=vectorstore.ensure_collection.create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=vectorstore.ensure_collection.create status=%d: %w", resp.StatusCode, domain.ErrInternal)
	}
	return nil
}

// ExistingIDs is a best-effort membership check used by rag_ingest to skip
// re-embedding chunks that are already present; any HTTP error here is
// treated as "unknown, assume absent" so a transient failure never blocks
// ingestion. Points are looked up in the store's default collection.
func (c *QdrantStore) ExistingIDs(ctx domain.Context, ids []string) (map[string]bool, error) {
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		qid := PointID(id)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s/points/%s", c.baseURL, c.defaultCollection, qid), nil)
		if err != nil {
			continue
		}
		c.setHeaders(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			present[id] = true
		}
		resp.Body.Close()
	}
	return present, nil
}

// Upsert writes one Qdrant point per record, keyed by a stable hash of each
// record's ID (its source id plus chunk index) so repeated ingestion of the
// same source overwrites chunks at the same index rather than duplicating
// them.
func (c *QdrantStore) Upsert(ctx domain.Context, records []domain.ChunkRecord, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("op=vectorstore.upsert records=%d vectors=%d: %w", len(records), len(vectors), domain.ErrInvalidArgument)
	}
	if len(records) == 0 {
		return nil
	}

	collection := c.defaultCollection
	if collection == "" {
		collection = records[0].Jurisdiction
	}
	points := make([]map[string]any, 0, len(records))
	for i, rec := range records {
		payload := map[string]any{
			"source_id":    rec.SourceID,
			"title":        rec.Title,
			"text":         rec.Text,
			"jurisdiction": rec.Jurisdiction,
			"language":     rec.Language,
		}
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		points = append(points, map[string]any{
			"id":      PointID(rec.ID),
			"vector":  vectors[i],
			"payload": payload,
		})
	}

	body := map[string]any{"points": points}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points", c.baseURL, collection), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("op=vectorstore.upsert: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("op=vectorstore.upsert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=vectorstore.upsert status=%d: %w", resp.StatusCode, domain.ErrInternal)
	}
	return nil
}

func (c *QdrantStore) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

// PointID derives a stable, collision-resistant Qdrant point id from an
// arbitrary chunk record id.
func PointID(recordID string) string {
	sum := sha1.Sum([]byte(recordID))
	return hex.EncodeToString(sum[:])
}
