package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/metrics"
)

type RetrieverConfig struct {
	TopK                int
	RRFK                int
	CandidateMultiplier int
}

func (cfg RetrieverConfig) normalize() RetrieverConfig {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 3
	}
	return cfg
}

// Retriever runs hybrid search: the semantic and lexical legs over-fetch
// candidates concurrently, RRF fusion merges them, and an optional
// cross-encoder pass reorders the head. Either leg failing fails the search;
// a reranker failure only degrades to fused order.
type Retriever struct {
	embedder ports.Embedder
	chunks   ports.ChunkStore
	reranker ports.Reranker
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	cfg      RetrieverConfig
}

// NewRetriever wires the hybrid search pipeline. reranker may be nil to run
// without the reranking stage.
func NewRetriever(
	embedder ports.Embedder,
	chunks ports.ChunkStore,
	reranker ports.Reranker,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	cfg RetrieverConfig,
) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		chunks:   chunks,
		reranker: reranker,
		metrics:  m,
		logger:   logger,
		cfg:      cfg.normalize(),
	}
}

func (r *Retriever) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RetrievalResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	fetchK := topK * r.cfg.CandidateMultiplier
	start := time.Now()

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var (
		wg       sync.WaitGroup
		semantic []domain.RetrievalResult
		lexical  []domain.RetrievalResult
		semErr   error
		lexErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = r.chunks.SearchSemantic(ctx, queryVector, fetchK, opts.Filter)
	}()
	go func() {
		defer wg.Done()
		lexical, lexErr = r.chunks.SearchLexical(ctx, query, fetchK, opts.Filter)
	}()
	wg.Wait()

	if semErr != nil {
		return nil, fmt.Errorf("semantic search: %w", semErr)
	}
	if lexErr != nil {
		return nil, fmt.Errorf("lexical search: %w", lexErr)
	}

	fused := fuseResultsRRF([][]domain.RetrievalResult{semantic, lexical}, r.cfg.RRFK, topK)

	if r.reranker != nil && len(fused) > 0 {
		reranked, rerankErr := r.reranker.Rerank(ctx, query, fused, topK)
		if rerankErr != nil {
			r.logger.Warn("rerank_passthrough", "error", rerankErr)
			if r.metrics != nil {
				r.metrics.RecordRerank("api", "passthrough")
			}
		} else {
			fused = reranked
			if r.metrics != nil {
				r.metrics.RecordRerank("api", "applied")
			}
		}
	}

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRetrieval("api", len(semantic), len(lexical), len(fused), duration)
	}
	r.logger.Info("hybrid_retrieval",
		"semantic_candidates", len(semantic),
		"lexical_candidates", len(lexical),
		"fused_results", len(fused),
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)

	return fused, nil
}
