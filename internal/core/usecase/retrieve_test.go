package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeChunkStore struct {
	semantic    []domain.RetrievalResult
	lexical     []domain.RetrievalResult
	semanticErr error
	lexicalErr  error
	limits      []int
	filters     []domain.SearchFilter
}

func (f *fakeChunkStore) IndexChunks(context.Context, *domain.DocumentSource, []domain.ChunkData, [][]float32) error {
	return nil
}

func (f *fakeChunkStore) SearchSemantic(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error) {
	f.limits = append(f.limits, limit)
	f.filters = append(f.filters, filter)
	return f.semantic, f.semanticErr
}

func (f *fakeChunkStore) SearchLexical(_ context.Context, _ string, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error) {
	f.limits = append(f.limits, limit)
	f.filters = append(f.filters, filter)
	return f.lexical, f.lexicalErr
}

type fakeReranker struct {
	reverse bool
	err     error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, candidates []domain.RetrievalResult, topN int) ([]domain.RetrievalResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RetrievalResult, len(candidates))
	copy(out, candidates)
	if f.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}

func TestSearchFusesBothLegs(t *testing.T) {
	store := &fakeChunkStore{
		semantic: []domain.RetrievalResult{
			{SourceURL: "https://a", Content: "semantic first"},
			{SourceURL: "https://b", Content: "overlap"},
		},
		lexical: []domain.RetrievalResult{
			{SourceURL: "https://b", Content: "overlap"},
			{SourceURL: "https://c", Content: "lexical second"},
		},
	}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, nil, nil, nil, RetrieverConfig{})

	results, err := r.Search(context.Background(), "tax rates", domain.SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(results))
	}
	if results[0].SourceURL != "https://b" {
		t.Fatalf("expected overlapping chunk ranked first, got %s", results[0].SourceURL)
	}
}

func TestSearchOverFetchesCandidates(t *testing.T) {
	store := &fakeChunkStore{}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, nil, nil, nil, RetrieverConfig{})

	if _, err := r.Search(context.Background(), "paye", domain.SearchOptions{TopK: 2}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, limit := range store.limits {
		if limit != 6 {
			t.Fatalf("expected legs to fetch topK*3=6 candidates, got %d", limit)
		}
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	store := &fakeChunkStore{}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, nil, nil, nil, RetrieverConfig{})

	if _, err := r.Search(context.Background(), "paye", domain.SearchOptions{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, limit := range store.limits {
		if limit != 15 {
			t.Fatalf("expected default topK 5 to over-fetch 15, got %d", limit)
		}
	}
}

func TestSearchForwardsFilterToBothLegs(t *testing.T) {
	store := &fakeChunkStore{}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, nil, nil, nil, RetrieverConfig{})

	filter := domain.SearchFilter{SourceType: domain.SourceLegislation, TaxYear: "2024-25"}
	if _, err := r.Search(context.Background(), "law", domain.SearchOptions{Filter: filter}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(store.filters) != 2 {
		t.Fatalf("expected both legs queried, got %d", len(store.filters))
	}
	for _, got := range store.filters {
		if got != filter {
			t.Fatalf("expected filter forwarded, got %+v", got)
		}
	}
}

func TestSearchFailsWhenLegFails(t *testing.T) {
	store := &fakeChunkStore{lexicalErr: errors.New("tsquery syntax")}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, nil, nil, nil, RetrieverConfig{})

	if _, err := r.Search(context.Background(), "paye", domain.SearchOptions{}); err == nil {
		t.Fatalf("expected error when a leg fails")
	}
}

func TestSearchFailsWhenEmbeddingFails(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("quota")}, &fakeChunkStore{}, nil, nil, nil, RetrieverConfig{})

	if _, err := r.Search(context.Background(), "paye", domain.SearchOptions{}); err == nil {
		t.Fatalf("expected error when embedding fails")
	}
}

func TestSearchAppliesReranker(t *testing.T) {
	store := &fakeChunkStore{
		semantic: []domain.RetrievalResult{
			{SourceURL: "https://a", Content: "first"},
			{SourceURL: "https://b", Content: "second"},
		},
	}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, &fakeReranker{reverse: true}, nil, nil, RetrieverConfig{})

	results, err := r.Search(context.Background(), "rates", domain.SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if results[0].SourceURL != "https://b" {
		t.Fatalf("expected reranked order, got %s first", results[0].SourceURL)
	}
}

func TestSearchRerankerFailurePassesThrough(t *testing.T) {
	store := &fakeChunkStore{
		semantic: []domain.RetrievalResult{
			{SourceURL: "https://a", Content: "first"},
			{SourceURL: "https://b", Content: "second"},
		},
	}
	r := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, &fakeReranker{err: errors.New("sidecar down")}, nil, nil, RetrieverConfig{})

	results, err := r.Search(context.Background(), "rates", domain.SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("expected passthrough, got error %v", err)
	}
	if results[0].SourceURL != "https://a" {
		t.Fatalf("expected fused order preserved, got %s first", results[0].SourceURL)
	}
}
