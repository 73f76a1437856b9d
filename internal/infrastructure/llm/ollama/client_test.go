package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

func TestGenerateJSONSendsModelAndFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"deadlines\":[]}  "}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1", Options{})
	got, err := client.GenerateJSON(context.Background(), "extract deadlines")
	if err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if got != `{"deadlines":[]}` {
		t.Fatalf("unexpected response %q", got)
	}
	if payload["model"] != "llama3.1" || payload["format"] != "json" || payload["prompt"] != "extract deadlines" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestGenerateJSONWithoutModelIsNotConfigured(t *testing.T) {
	client := New("http://127.0.0.1:1", "", Options{})
	if _, err := client.GenerateJSON(context.Background(), "x"); !domain.IsKind(err, domain.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestGenerateJSONRetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{}"}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	client := New(server.URL, "llama3.1", Options{Executor: exec})
	if _, err := client.GenerateJSON(context.Background(), "x"); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestGenerateJSONTimesOutAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1", Options{CallTimeout: 20 * time.Millisecond})
	_, err := client.GenerateJSON(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "nomic-embed-text", Options{}))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind for 502, got %v", err)
	}
}

func TestEmbedChecksVectorCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "nomic-embed-text", Options{}))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
	vec, err := embedder.EmbedQuery(context.Background(), "a")
	if err != nil || len(vec) != 2 {
		t.Fatalf("EmbedQuery() = %v, %v", vec, err)
	}
}
