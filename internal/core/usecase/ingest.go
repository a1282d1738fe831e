package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
)

// Ingester validates ingest requests on the API side and hands them to the
// worker queue. Crawling and parsing happen in the worker; the request
// returns as soon as the job is durably published.
type Ingester struct {
	queue  ports.JobQueue
	logger *slog.Logger
}

func NewIngester(queue ports.JobQueue, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{queue: queue, logger: logger}
}

func (uc *Ingester) RequestIngest(ctx context.Context, job domain.IngestJob) (string, error) {
	job.URL = strings.TrimSpace(job.URL)
	if job.URL == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "request ingest", errors.New("url is required"))
	}
	parsed, err := url.Parse(job.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "request ingest",
			fmt.Errorf("url %q is not an absolute http(s) url", job.URL))
	}

	if job.SourceType == "" {
		job.SourceType = domain.SourceIRDGuidance
	}
	if !domain.ValidSourceType(job.SourceType) {
		return "", domain.WrapError(domain.ErrInvalidInput, "request ingest",
			fmt.Errorf("unknown source type %q", job.SourceType))
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	if err := uc.queue.PublishIngestJob(ctx, job); err != nil {
		return "", fmt.Errorf("publish ingest job: %w", err)
	}

	uc.logger.Info("ingest_enqueued",
		"job_id", job.JobID,
		"url", job.URL,
		"source_type", string(job.SourceType),
		"force", job.Force,
	)
	return job.JobID, nil
}
