package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/metrics"
)

// Chunks are embedded in batches; the embedding API bounds request size.
const embedBatchSize = 20

// Processor runs one ingestion job end to end on the worker side: crawl,
// parse by source kind, chunk, embed, store. Unchanged content is skipped
// by hash unless the job forces a re-run.
type Processor struct {
	crawler  ports.Crawler
	parser   ports.DocumentParser
	chunker  ports.Chunker
	embedder ports.Embedder
	sources  ports.SourceStore
	chunks   ports.ChunkStore
	archive  ports.Archive
	metrics  *metrics.WorkerMetrics
	logger   *slog.Logger
}

func NewProcessor(
	crawler ports.Crawler,
	parser ports.DocumentParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	sources ports.SourceStore,
	chunks ports.ChunkStore,
	archive ports.Archive,
	m *metrics.WorkerMetrics,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		crawler:  crawler,
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		sources:  sources,
		chunks:   chunks,
		archive:  archive,
		metrics:  m,
		logger:   logger,
	}
}

func (uc *Processor) ProcessJob(ctx context.Context, job domain.IngestJob) (*domain.IngestOutcome, error) {
	started := time.Now()
	if uc.metrics != nil {
		uc.metrics.StartJob()
		if !job.EnqueuedAt.IsZero() {
			uc.metrics.ObserveQueueLag("worker", started.Sub(job.EnqueuedAt))
		}
	}

	outcome, err := uc.run(ctx, job)

	if uc.metrics != nil {
		skipped := err == nil && outcome.Skipped
		uc.metrics.FinishJob("worker", time.Since(started), skipped, err)
	}
	return outcome, err
}

func (uc *Processor) run(ctx context.Context, job domain.IngestJob) (*domain.IngestOutcome, error) {
	crawled, err := uc.crawl(ctx, job.URL)
	if err != nil {
		return nil, err
	}

	if !job.Force {
		unchanged, err := uc.contentUnchanged(ctx, job.URL, crawled.ContentHash)
		if err != nil {
			return nil, err
		}
		if unchanged {
			uc.logger.Info("skipping_source", "url", job.URL, "reason", "content unchanged")
			return &domain.IngestOutcome{URL: job.URL, Skipped: true, Reason: "content unchanged"}, nil
		}
	}

	uc.archiveRaw(ctx, crawled)

	parsed, outcome, err := uc.parse(crawled, job.URL)
	if err != nil || outcome != nil {
		return outcome, err
	}

	title := job.Title
	if title == "" {
		title = parsed.Title
	}

	if parsed.PDFURL != "" {
		if err := uc.followPDFLink(ctx, parsed, job.URL); err != nil {
			return nil, err
		}
	}

	chunks := uc.chunker.Split(parsed)
	if len(chunks) == 0 {
		uc.logger.Warn("no_chunks_produced", "url", job.URL)
		return &domain.IngestOutcome{URL: job.URL, Skipped: true, Reason: "no chunks produced"}, nil
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := uc.store(ctx, job, crawled, title, chunks, vectors); err != nil {
		return nil, err
	}

	uc.logger.Info("source_processed",
		"url", job.URL,
		"sections", len(parsed.Sections),
		"chunks", len(chunks),
	)
	return &domain.IngestOutcome{
		URL:      job.URL,
		Title:    title,
		Sections: len(parsed.Sections),
		Chunks:   len(chunks),
	}, nil
}

func (uc *Processor) crawl(ctx context.Context, url string) (*domain.CrawlResult, error) {
	crawled, err := uc.crawler.Fetch(ctx, url)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordCrawlError("worker")
		}
		return nil, fmt.Errorf("crawl source: %w", err)
	}
	return crawled, nil
}

func (uc *Processor) contentUnchanged(ctx context.Context, url, contentHash string) (bool, error) {
	existing, err := uc.sources.GetByURL(ctx, url)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check existing source: %w", err)
	}
	return existing.ContentHash == contentHash, nil
}

// archiveRaw keeps the raw payload for re-parsing without a re-crawl. Losing
// the copy must not lose the ingest, so failures only log.
func (uc *Processor) archiveRaw(ctx context.Context, crawled *domain.CrawlResult) {
	if uc.archive == nil || len(crawled.RawBytes) == 0 {
		return
	}
	key := crawled.ContentHash + "." + string(crawled.ContentType)
	if err := uc.archive.Save(ctx, key, bytes.NewReader(crawled.RawBytes)); err != nil {
		uc.logger.Warn("archive_failed", "key", key, "error", err)
	}
}

// parse picks the parser by payload kind and host. A non-nil outcome means
// the job ends early without error.
func (uc *Processor) parse(crawled *domain.CrawlResult, url string) (*domain.ParsedDocument, *domain.IngestOutcome, error) {
	if crawled.ContentType == domain.ContentPDF {
		if len(crawled.RawBytes) == 0 {
			uc.logger.Error("pdf_missing_bytes", "url", url)
			return nil, &domain.IngestOutcome{URL: url, Skipped: true, Reason: "missing PDF bytes"}, nil
		}
		parsed, err := uc.parser.ParsePDF(crawled.RawBytes, url)
		if err != nil {
			return nil, nil, fmt.Errorf("parse pdf: %w", err)
		}
		return parsed, nil, nil
	}

	if strings.Contains(url, "taxtechnical.ird.govt.nz") {
		parsed, err := uc.parser.ParseTaxTechnical([]byte(crawled.HTML), url)
		if err != nil {
			return nil, nil, fmt.Errorf("parse taxtechnical page: %w", err)
		}
		return parsed, nil, nil
	}

	parsed, err := uc.parser.ParseHTML([]byte(crawled.HTML), url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	return parsed, nil, nil
}

// followPDFLink crawls a detected publication PDF and appends its sections.
// Stub pages on taxtechnical carry a summary plus a link to the full PDF;
// both halves are indexed under the stub URL.
func (uc *Processor) followPDFLink(ctx context.Context, parsed *domain.ParsedDocument, sourceURL string) error {
	uc.logger.Info("following_pdf_link", "pdf_url", parsed.PDFURL)

	pdfCrawl, err := uc.crawl(ctx, parsed.PDFURL)
	if err != nil {
		return err
	}
	if pdfCrawl.ContentType != domain.ContentPDF || len(pdfCrawl.RawBytes) == 0 {
		return nil
	}

	uc.archiveRaw(ctx, pdfCrawl)

	pdfParsed, err := uc.parser.ParsePDF(pdfCrawl.RawBytes, sourceURL)
	if err != nil {
		return fmt.Errorf("parse linked pdf: %w", err)
	}
	parsed.Sections = append(parsed.Sections, pdfParsed.Sections...)
	return nil
}

func (uc *Processor) embedChunks(ctx context.Context, chunks []domain.ChunkData) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		batch, err := uc.embedder.EmbedDocuments(ctx, texts[start:end])
		if uc.metrics != nil {
			uc.metrics.RecordEmbedBatch("worker", err)
		}
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), end-start),
			)
		}

		vectors = append(vectors, batch...)
		uc.logger.Info("embedded_batch", "from", start, "to", end, "total", len(texts))
	}
	return vectors, nil
}

func (uc *Processor) store(
	ctx context.Context,
	job domain.IngestJob,
	crawled *domain.CrawlResult,
	title string,
	chunks []domain.ChunkData,
	vectors [][]float32,
) error {
	crawledAt := crawled.CrawledAt
	src := &domain.DocumentSource{
		URL:           job.URL,
		SourceType:    job.SourceType,
		Title:         title,
		ContentHash:   crawled.ContentHash,
		LastCrawledAt: &crawledAt,
		Identifier:    job.Identifier,
		IssueDate:     job.IssueDate,
	}
	if err := uc.chunks.IndexChunks(ctx, src, chunks, vectors); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	if uc.metrics != nil {
		uc.metrics.ObserveChunksStored("worker", len(chunks))
	}
	return nil
}
