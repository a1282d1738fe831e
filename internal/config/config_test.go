package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_RRF_K", "")
	t.Setenv("RAG_CANDIDATE_MULTIPLIER", "")
	t.Setenv("RERANKER_ENABLED", "")

	cfg := Load()
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.RAGRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGRRFK)
	}
	if cfg.RAGCandidateMultiplier != 3 {
		t.Fatalf("expected default candidate multiplier 3, got %d", cfg.RAGCandidateMultiplier)
	}
	if cfg.RerankerEnabled {
		t.Fatalf("expected reranker disabled by default")
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("RAG_RRF_K", "75")
	t.Setenv("RAG_CANDIDATE_MULTIPLIER", "4")
	t.Setenv("RERANKER_ENABLED", "true")
	t.Setenv("RERANKER_URL", "http://reranker:9000/rerank")

	cfg := Load()
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RAGTopK)
	}
	if cfg.RAGRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.RAGRRFK)
	}
	if cfg.RAGCandidateMultiplier != 4 {
		t.Fatalf("expected candidate multiplier 4, got %d", cfg.RAGCandidateMultiplier)
	}
	if !cfg.RerankerEnabled {
		t.Fatalf("expected reranker enabled")
	}
	if cfg.RerankerURL != "http://reranker:9000/rerank" {
		t.Fatalf("expected reranker url override, got %q", cfg.RerankerURL)
	}
}

func TestLoadFallsBackEmbeddingKeyToLLMKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "key-a")
	t.Setenv("EMBEDDING_API_KEY", "")

	cfg := Load()
	if cfg.EmbeddingAPIKey != "key-a" {
		t.Fatalf("expected embedding key to fall back to llm key, got %q", cfg.EmbeddingAPIKey)
	}

	t.Setenv("EMBEDDING_API_KEY", "key-b")
	cfg = Load()
	if cfg.EmbeddingAPIKey != "key-b" {
		t.Fatalf("expected explicit embedding key, got %q", cfg.EmbeddingAPIKey)
	}
}

func TestLoadParsesCrawlRate(t *testing.T) {
	t.Setenv("CRAWL_RPS", "")
	cfg := Load()
	if cfg.CrawlRPS != 1.0 {
		t.Fatalf("expected default crawl rps 1.0, got %v", cfg.CrawlRPS)
	}

	t.Setenv("CRAWL_RPS", "0.5")
	cfg = Load()
	if cfg.CrawlRPS != 0.5 {
		t.Fatalf("expected crawl rps 0.5, got %v", cfg.CrawlRPS)
	}

	t.Setenv("CRAWL_RPS", "not-a-number")
	cfg = Load()
	if cfg.CrawlRPS != 1.0 {
		t.Fatalf("expected invalid crawl rps to fall back to 1.0, got %v", cfg.CrawlRPS)
	}
}
