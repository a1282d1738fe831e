package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/bootstrap"
	"github.com/mkaretu/nz-tax-assistant/internal/config"
	"github.com/mkaretu/nz-tax-assistant/internal/evaluation"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/logging"
)

func main() {
	scenariosPath := flag.String("scenarios", "eval/scenarios.yaml", "path to the scenario suite")
	timeout := flag.Duration("timeout", 15*time.Minute, "overall evaluation deadline")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("eval", cfg.LogLevel)

	scenarios, err := evaluation.LoadScenarios(*scenariosPath)
	if err != nil {
		log.Fatalf("load scenarios: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap.NewCore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	runner := evaluation.NewRunner(app.Retriever, app.Questions, logger, cfg.RAGTopK)
	fmt.Printf("Loaded %d evaluation scenarios\n", len(scenarios))

	banner("RETRIEVAL EVALUATION")
	retrieval, err := runner.EvaluateRetrieval(ctx, scenarios)
	if err != nil {
		log.Fatalf("retrieval evaluation: %v", err)
	}
	fmt.Printf("Scenarios evaluated: %d\n", retrieval.Total)
	fmt.Printf("Avg source type precision: %.1f%%\n", retrieval.AvgTypePrecision*100)
	fmt.Printf("Avg URL fragment precision: %.1f%%\n", retrieval.AvgURLPrecision*100)
	fmt.Printf("Avg latency: %dms\n", retrieval.AvgLatencyMS)
	for _, d := range retrieval.Details {
		fmt.Printf("  [%s] %-40s types=%.0f%% urls=%.0f%% results=%d (%dms)\n",
			passOrMiss(d.Pass()), d.ID, d.TypePrecision*100, d.URLPrecision*100, d.NumResults, d.LatencyMS)
	}

	banner("END-TO-END ANSWER EVALUATION")
	answers := runner.EvaluateAnswers(ctx, scenarios)
	fmt.Printf("Scenarios evaluated: %d\n", answers.Total)
	fmt.Printf("Errors: %d\n", answers.Errors)
	fmt.Printf("Avg keyword precision: %.1f%%\n", answers.AvgKeywordPrecision*100)
	fmt.Printf("Citation rate: %.1f%%\n", answers.CitationRate*100)
	fmt.Printf("Avg latency: %dms\n", answers.AvgLatencyMS)
	for _, d := range answers.Details {
		if d.Err != "" {
			fmt.Printf("  [ERR ] %-40s %s\n", d.ID, d.Err)
			continue
		}
		cite := "NO-CITE"
		if d.HasCitation {
			cite = "cited"
		}
		fmt.Printf("  [%s] %-40s keywords=%d/%d sources=%d %s (%dms)\n",
			passOrMiss(d.Pass()), d.ID, d.KeywordHits, d.KeywordTotal, d.NumSources, cite, d.LatencyMS)
	}
}

func passOrMiss(pass bool) string {
	if pass {
		return "PASS"
	}
	return "MISS"
}

func banner(title string) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println(title)
	fmt.Println(line)
}
