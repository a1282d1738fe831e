package ports

import (
	"context"
	"io"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// SourceStore reads document source records.
type SourceStore interface {
	GetByURL(ctx context.Context, url string) (*domain.DocumentSource, error)
}

// ChunkStore indexes chunks and serves both retrieval legs. IndexChunks
// upserts the source and replaces its chunks in one transaction, so a
// failed run never leaves a new content hash next to stale chunks.
type ChunkStore interface {
	IndexChunks(ctx context.Context, src *domain.DocumentSource, chunks []domain.ChunkData, vectors [][]float32) error
	SearchSemantic(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
	SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error)
}

// QueryLogStore records answered queries and user feedback.
type QueryLogStore interface {
	InsertQuery(ctx context.Context, rec *domain.QueryRecord) (string, error)
	UpdateFeedback(ctx context.Context, queryID string, feedback domain.Feedback, note string) error
	Stats(ctx context.Context) (*domain.QueryStats, error)
	Report(ctx context.Context, days int) (*domain.QualityReport, error)
}

// Embedder builds vectors for stored chunks and for query text. The two
// methods use asymmetric task types, so they are not interchangeable.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatCompleter runs chat completions against the configured LLM.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (*domain.CompletionResult, error)
	Stream(ctx context.Context, messages []domain.ChatMessage, onDelta func(delta string)) (*domain.CompletionResult, error)
}

// Reranker re-scores retrieval candidates against the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievalResult, topN int) ([]domain.RetrievalResult, error)
}

// Crawler fetches a remote document.
type Crawler interface {
	Fetch(ctx context.Context, url string) (*domain.CrawlResult, error)
}

// DocumentParser turns raw crawl payloads into structured sections.
type DocumentParser interface {
	ParseHTML(content []byte, url string) (*domain.ParsedDocument, error)
	ParseTaxTechnical(content []byte, url string) (*domain.ParsedDocument, error)
	ParsePDF(content []byte, url string) (*domain.ParsedDocument, error)
}

// Chunker splits a parsed document into indexable chunks.
type Chunker interface {
	Split(doc *domain.ParsedDocument) []domain.ChunkData
}

// JobQueue publishes/consumes ingestion jobs.
type JobQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
}

// Archive stores raw crawl payloads keyed by content hash. The service
// only ever writes; reads happen out of band when a page needs re-parsing.
type Archive interface {
	Save(ctx context.Context, key string, data io.Reader) error
}
