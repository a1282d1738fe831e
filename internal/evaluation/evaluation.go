// Package evaluation scores retrieval and answer quality against a YAML
// scenario suite. Scenarios describe what a good retrieval set and answer
// look like for one question; the runner replays them against the live
// stack and reports per-scenario precision plus aggregates.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
)

// markdownLink matches inline citations of the form [text](https://...).
var markdownLink = regexp.MustCompile(`\[.+?\]\(https?://[^\s)]+\)`)

type Scenario struct {
	ID                   string   `yaml:"id"`
	Category             string   `yaml:"category"`
	Question             string   `yaml:"question"`
	ExpectedSourceTypes  []string `yaml:"expected_source_types"`
	ExpectedURLFragments []string `yaml:"expected_url_fragments"`
	AnswerKeywords       []string `yaml:"answer_keywords"`
	ExpectOutOfScope     bool     `yaml:"expect_out_of_scope"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads the scenario suite from path.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", path)
	}
	for i, s := range file.Scenarios {
		if s.ID == "" || s.Question == "" {
			return nil, fmt.Errorf("scenario %d missing id or question", i)
		}
	}
	return file.Scenarios, nil
}

// RetrievalResult is one scenario's retrieval score. Precision 1.0 means
// every expected source type (or URL fragment) appeared in the top-k set.
type RetrievalResult struct {
	ID            string
	Category      string
	NumResults    int
	TypePrecision float64
	URLPrecision  float64
	LatencyMS     int
}

func (r RetrievalResult) Pass() bool {
	return r.TypePrecision == 1 && r.URLPrecision == 1
}

type RetrievalSummary struct {
	Total            int
	AvgTypePrecision float64
	AvgURLPrecision  float64
	AvgLatencyMS     int
	Details          []RetrievalResult
}

// AnswerResult is one scenario's end-to-end score. Err is set when the ask
// itself failed; scores are zero in that case.
type AnswerResult struct {
	ID               string
	Category         string
	Err              string
	KeywordHits      int
	KeywordTotal     int
	KeywordPrecision float64
	HasCitation      bool
	NumSources       int
	LatencyMS        int
	Model            string
}

func (r AnswerResult) Pass() bool {
	return r.Err == "" && r.KeywordPrecision == 1
}

type AnswerSummary struct {
	Total               int
	Errors              int
	AvgKeywordPrecision float64
	CitationRate        float64
	AvgLatencyMS        int
	Details             []AnswerResult
}

// Runner replays scenarios against the retriever and the question service.
type Runner struct {
	searcher  ports.DocumentSearcher
	questions ports.QuestionService
	logger    *slog.Logger
	topK      int
}

func NewRunner(searcher ports.DocumentSearcher, questions ports.QuestionService, logger *slog.Logger, topK int) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Runner{searcher: searcher, questions: questions, logger: logger, topK: topK}
}

// EvaluateRetrieval scores the retrieval leg alone. Out-of-scope scenarios
// are skipped because they have no meaningful retrieval target.
func (r *Runner) EvaluateRetrieval(ctx context.Context, scenarios []Scenario) (*RetrievalSummary, error) {
	summary := &RetrievalSummary{}
	for _, scenario := range scenarios {
		if scenario.ExpectOutOfScope {
			continue
		}

		start := time.Now()
		hits, err := r.searcher.Search(ctx, scenario.Question, domain.SearchOptions{TopK: r.topK})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.ID, err)
		}

		summary.Details = append(summary.Details, RetrievalResult{
			ID:            scenario.ID,
			Category:      scenario.Category,
			NumResults:    len(hits),
			TypePrecision: scoreSourceTypes(scenario.ExpectedSourceTypes, hits),
			URLPrecision:  scoreURLFragments(scenario.ExpectedURLFragments, hits),
			LatencyMS:     int(time.Since(start).Milliseconds()),
		})
	}

	summary.Total = len(summary.Details)
	if summary.Total == 0 {
		return summary, nil
	}
	var typeSum, urlSum float64
	var latencySum int
	for _, d := range summary.Details {
		typeSum += d.TypePrecision
		urlSum += d.URLPrecision
		latencySum += d.LatencyMS
	}
	summary.AvgTypePrecision = typeSum / float64(summary.Total)
	summary.AvgURLPrecision = urlSum / float64(summary.Total)
	summary.AvgLatencyMS = latencySum / summary.Total
	return summary, nil
}

// EvaluateAnswers scores the full ask path for every scenario, including
// out-of-scope ones, whose keywords describe the expected refusal. Ask
// failures are recorded, not fatal, so one bad scenario cannot sink a run.
func (r *Runner) EvaluateAnswers(ctx context.Context, scenarios []Scenario) *AnswerSummary {
	summary := &AnswerSummary{}
	for _, scenario := range scenarios {
		start := time.Now()
		answer, err := r.questions.Ask(ctx, scenario.Question, nil)
		if err != nil {
			r.logger.Error("scenario failed", "id", scenario.ID, "error", err)
			summary.Details = append(summary.Details, AnswerResult{
				ID:           scenario.ID,
				Category:     scenario.Category,
				Err:          err.Error(),
				KeywordTotal: len(scenario.AnswerKeywords),
			})
			continue
		}

		hits, precision := scoreKeywords(scenario.AnswerKeywords, answer.Text)
		summary.Details = append(summary.Details, AnswerResult{
			ID:               scenario.ID,
			Category:         scenario.Category,
			KeywordHits:      hits,
			KeywordTotal:     len(scenario.AnswerKeywords),
			KeywordPrecision: precision,
			HasCitation:      markdownLink.MatchString(answer.Text),
			NumSources:       len(answer.Sources),
			LatencyMS:        int(time.Since(start).Milliseconds()),
			Model:            answer.Model,
		})
	}

	summary.Total = len(summary.Details)
	succeeded := 0
	cited := 0
	var precisionSum float64
	var latencySum int
	for _, d := range summary.Details {
		if d.Err != "" {
			summary.Errors++
			continue
		}
		succeeded++
		precisionSum += d.KeywordPrecision
		latencySum += d.LatencyMS
		if d.HasCitation {
			cited++
		}
	}
	if succeeded > 0 {
		summary.AvgKeywordPrecision = precisionSum / float64(succeeded)
		summary.CitationRate = float64(cited) / float64(succeeded)
		summary.AvgLatencyMS = latencySum / succeeded
	}
	return summary
}

// scoreSourceTypes is the share of expected source types present anywhere
// in the hit set. No expectations scores 1.0.
func scoreSourceTypes(expected []string, hits []domain.RetrievalResult) float64 {
	if len(expected) == 0 {
		return 1
	}
	found := make(map[string]bool, len(hits))
	for _, hit := range hits {
		found[string(hit.SourceType)] = true
	}
	matches := 0
	for _, want := range expected {
		if found[want] {
			matches++
		}
	}
	return float64(matches) / float64(len(expected))
}

// scoreURLFragments is the share of expected fragments contained in at
// least one hit URL.
func scoreURLFragments(expected []string, hits []domain.RetrievalResult) float64 {
	if len(expected) == 0 {
		return 1
	}
	matches := 0
	for _, fragment := range expected {
		for _, hit := range hits {
			if strings.Contains(hit.SourceURL, fragment) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(expected))
}

// scoreKeywords counts case-insensitive keyword hits in the answer.
func scoreKeywords(keywords []string, answer string) (int, float64) {
	if len(keywords) == 0 {
		return 0, 1
	}
	lower := strings.ToLower(answer)
	hits := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			hits++
		}
	}
	return hits, float64(hits) / float64(len(keywords))
}
