// Package bootstrap wires configuration, infrastructure and usecases into
// runnable applications. Each binary gets only what it runs: the API carries
// the question loop and the queue producer, the worker carries the ingestion
// pipeline and the queue consumer, and the core wiring alone backs the MCP
// and evaluation tools.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mkaretu/nz-tax-assistant/internal/config"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/core/usecase"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/chunking"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/crawler"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/embedding/gemini"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/llm/openai"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/parser"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/queue/nats"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/repository/postgres"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/rerank"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/storage/localfs"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/logging"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	DB    *sql.DB
	Queue *nats.Queue

	QueryLog   ports.QueryLogStore
	Retriever  ports.DocumentSearcher
	Dispatcher *usecase.ToolDispatcher
	Questions  ports.QuestionService
	Ingester   ports.IngestRequester
	Processor  ports.JobProcessor

	APIMetrics    *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFns []func()
}

// NewAPI wires the question-answering stack plus the queue producer side
// used by the ingest endpoint.
func NewAPI(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	app := &App{Config: cfg, Logger: logger, APIMetrics: metrics.NewHTTPServerMetrics("api")}

	if err := app.wireCore(ctx, cfg, logger, app.APIMetrics); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.wireQueue(cfg, logger); err != nil {
		app.Close()
		return nil, err
	}
	app.Ingester = usecase.NewIngester(app.Queue, logger)
	return app, nil
}

// NewWorker wires the ingestion pipeline and the queue consumer side.
func NewWorker(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	app := &App{Config: cfg, Logger: logger, WorkerMetrics: metrics.NewWorkerMetrics("worker")}

	db, err := app.openDatabase(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := app.wireQueue(cfg, logger); err != nil {
		app.Close()
		return nil, err
	}

	archive, err := localfs.New(cfg.ArchivePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init archive storage: %w", err)
	}

	app.Processor = usecase.NewProcessor(
		crawler.New(crawler.Options{
			RequestsPerSecond:  cfg.CrawlRPS,
			ResilienceExecutor: resilience.NewExecutor(resilience.CrawlConfig(), logger),
		}),
		parser.New(),
		chunking.NewSplitter(0),
		app.buildEmbedder(cfg, logger),
		postgres.NewSourceRepository(db),
		postgres.NewChunkRepository(db),
		archive,
		app.WorkerMetrics,
		logger,
	)
	return app, nil
}

// NewCore wires the question-answering stack without the queue or HTTP
// metrics, for binaries that drive the dispatcher directly (MCP, eval).
func NewCore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger("core", cfg.LogLevel)
	}
	app := &App{Config: cfg, Logger: logger}
	if err := app.wireCore(ctx, cfg, logger, nil); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases held resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// wireCore builds the shared question stack: database, embedder, LLM
// gateway, hybrid retriever, tool dispatcher and orchestrator.
func (a *App) wireCore(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.HTTPServerMetrics) error {
	db, err := a.openDatabase(ctx, cfg)
	if err != nil {
		return err
	}

	chunks := postgres.NewChunkRepository(db)
	queryLog := postgres.NewQueryLogRepository(db)
	a.QueryLog = queryLog

	var reranker ports.Reranker
	if cfg.RerankerEnabled {
		reranker = rerank.New(cfg.RerankerURL, rerank.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
		})
	}

	retriever := usecase.NewRetriever(a.buildEmbedder(cfg, logger), chunks, reranker, m, logger, usecase.RetrieverConfig{
		TopK:                cfg.RAGTopK,
		RRFK:                cfg.RAGRRFK,
		CandidateMultiplier: cfg.RAGCandidateMultiplier,
	})
	a.Retriever = retriever
	a.Dispatcher = usecase.NewToolDispatcher(retriever, cfg.RAGTopK)

	llm := openai.New(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, openai.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
	})
	a.Questions = usecase.NewOrchestrator(retriever, llm, a.Dispatcher, queryLog, m, logger)
	return nil
}

func (a *App) openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := postgres.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.DB = db
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func (a *App) buildEmbedder(cfg config.Config, logger *slog.Logger) ports.Embedder {
	return gemini.New(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingAPIKey, gemini.Options{
		QueryCacheSize:     cfg.EmbedCacheSize,
		ResilienceExecutor: resilience.NewExecutor(resilience.EmbeddingConfig(), logger),
	})
}

func (a *App) wireQueue(cfg config.Config, logger *slog.Logger) error {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("init job queue: %w", err)
	}
	a.Queue = queue
	a.closeFns = append(a.closeFns, queue.Close)
	return nil
}
