package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/config"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/repository/postgres"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/logging"
	"github.com/mkaretu/nz-tax-assistant/internal/reporting"
)

func main() {
	days := flag.Int("days", 30, "reporting window in days")
	out := flag.String("out", "quality_report.xlsx", "path for the XLSX export")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("report", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	report, err := postgres.NewQueryLogRepository(db).Report(ctx, *days)
	if err != nil {
		log.Fatalf("build report: %v", err)
	}

	logger.Info("report summary",
		"days", report.Days,
		"total_queries", report.Summary.TotalQueries,
		"positive", report.Summary.Positive,
		"negative", report.Summary.Negative,
		"no_feedback", report.Summary.NoFeedback,
		"zero_retrieval", report.Summary.ZeroRetrieval,
		"errors", report.Summary.Errors,
		"avg_latency_ms", report.Summary.AvgLatencyMS,
		"p95_latency_ms", report.Summary.P95LatencyMS,
		"total_cost_usd", report.Summary.TotalCostUSD,
	)
	for _, q := range report.Negative {
		logger.Warn("negative feedback", "question", q.Question, "note", q.FeedbackNote, "latency_ms", q.LatencyMS)
	}
	for _, q := range report.ZeroRetrieval {
		logger.Warn("zero retrieval", "question", q.Question)
	}
	for _, q := range report.Slowest {
		logger.Info("slow query", "question", q.Question, "latency_ms", q.LatencyMS)
	}
	for _, row := range report.ToolUsage {
		logger.Info("tool usage", "tool", row.Tool, "calls", row.Calls)
	}
	for _, q := range report.Errors {
		logger.Warn("query error", "question", q.Question, "error", q.Error)
	}

	if err := reporting.WriteWorkbook(report, *out); err != nil {
		log.Fatalf("write workbook: %v", err)
	}
	logger.Info("report written", "path", *out, "days", *days)
}
