package adminserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/truecivic/ingestor/internal/checkpointstore"
	"github.com/truecivic/ingestor/internal/watermarkstore"
)

func TestHashTokenRoundTripsThroughVerifyToken(t *testing.T) {
	hash, err := HashToken("correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verifyToken("correct-horse", hash) {
		t.Fatal("expected the original token to verify against its own hash")
	}
	if verifyToken("wrong", hash) {
		t.Fatal("expected a different token to fail verification")
	}
}

func TestDebugEndpointsRejectMissingOrWrongBearerTokenWhenConfigured(t *testing.T) {
	hash, err := HashToken("s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := New([]string{"mps"}, checkpointstore.NewMemoryStore(), watermarkstore.NewMemoryStore(), hash)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/watermarks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no Authorization header, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/debug/watermarks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong bearer token, got %d", resp2.StatusCode)
	}

	req3, _ := http.NewRequest(http.MethodGet, srv.URL+"/debug/watermarks", nil)
	req3.Header.Set("Authorization", "Bearer s3cret")
	resp3, err := http.DefaultClient.Do(req3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with the correct bearer token, got %d", resp3.StatusCode)
	}
}

func TestHealthzAndMetricsStayOpenWhenAdminTokenConfigured(t *testing.T) {
	hash, err := HashToken("s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := New(nil, checkpointstore.NewMemoryStore(), watermarkstore.NewMemoryStore(), hash)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /healthz to stay open, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected /metrics to stay open, got %d", resp2.StatusCode)
	}
}
