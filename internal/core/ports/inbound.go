package ports

import (
	"context"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// QuestionService is the inbound contract for answering tax questions.
type QuestionService interface {
	Ask(ctx context.Context, question string, history []domain.ConversationTurn) (*domain.Answer, error)
	AskStream(ctx context.Context, question string, history []domain.ConversationTurn) <-chan domain.StreamEvent
}

// DocumentSearcher is the inbound contract for standalone hybrid retrieval.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RetrievalResult, error)
}

// IngestRequester validates and enqueues crawl jobs.
type IngestRequester interface {
	RequestIngest(ctx context.Context, job domain.IngestJob) (string, error)
}

// JobProcessor runs one ingestion job end to end on the worker side.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job domain.IngestJob) (*domain.IngestOutcome, error)
}
