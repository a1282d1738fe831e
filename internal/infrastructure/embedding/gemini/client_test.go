package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func TestEmbedDocumentsSendsBatchWithDocumentTaskType(t *testing.T) {
	var capturedPath string
	var capturedKey string
	var captured batchEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "text-embedding-004", "test-key", Options{})
	vectors, err := client.EmbedDocuments(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vector %v", vectors[1])
	}
	if capturedPath != "/models/text-embedding-004:batchEmbedContents" {
		t.Fatalf("unexpected path %q", capturedPath)
	}
	if capturedKey != "test-key" {
		t.Fatalf("expected api key header, got %q", capturedKey)
	}
	if len(captured.Requests) != 2 {
		t.Fatalf("expected 2 batch requests, got %d", len(captured.Requests))
	}
	first := captured.Requests[0]
	if first.TaskType != "RETRIEVAL_DOCUMENT" {
		t.Fatalf("expected RETRIEVAL_DOCUMENT, got %q", first.TaskType)
	}
	if first.OutputDimensionality != 768 {
		t.Fatalf("expected 768 dimensions, got %d", first.OutputDimensionality)
	}
	if first.Model != "models/text-embedding-004" {
		t.Fatalf("unexpected model %q", first.Model)
	}
	if first.Content.Parts[0].Text != "first" {
		t.Fatalf("unexpected text %q", first.Content.Parts[0].Text)
	}
}

func TestEmbedDocumentsRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1]}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "text-embedding-004", "k", Options{})
	_, err := client.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "got 1 embeddings for 2 texts") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEmbedQueryUsesQueryTaskTypeAndCache(t *testing.T) {
	var calls int
	var captured embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5,0.6]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "text-embedding-004", "k", Options{QueryCacheSize: 10})

	for range 2 {
		vec, err := client.EmbedQuery(context.Background(), "What is PAYE?")
		if err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
		if len(vec) != 2 || vec[0] != 0.5 {
			t.Fatalf("unexpected vector %v", vec)
		}
	}

	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
	if captured.TaskType != "RETRIEVAL_QUERY" {
		t.Fatalf("expected RETRIEVAL_QUERY, got %q", captured.TaskType)
	}
}

func TestEmbedQueryWrapsRateLimitAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "text-embedding-004", "k", Options{})
	_, err := client.EmbedQuery(context.Background(), "What is PAYE?")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestQueryCacheEvictsOldestFirst(t *testing.T) {
	cache := newQueryCache(2)
	cache.add("a", []float32{1})
	cache.add("b", []float32{2})
	cache.add("c", []float32{3})

	if _, ok := cache.get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if _, ok := cache.get("b"); !ok {
		t.Fatalf("expected b to remain")
	}
	if vec, ok := cache.get("c"); !ok || vec[0] != 3 {
		t.Fatalf("expected c to remain, got %v %v", vec, ok)
	}
}
