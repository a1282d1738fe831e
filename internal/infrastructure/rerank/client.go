// Package rerank calls a cross-encoder sidecar service. The model itself
// (sentence-transformers) has no Go runtime, so scoring runs out of process
// behind a small HTTP contract.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
)

type Client struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

// New builds a client for the rerank endpoint. No retry layer: a reranker
// failure degrades to fused order upstream, and retrying an optional stage
// only stretches tail latency. The breaker still applies, so a dead sidecar
// fails fast instead of costing every query the full timeout.
func New(url string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	TopN       int      `json:"top_n"`
}

type rerankResponse struct {
	Ranking []rankEntry `json:"ranking"`
}

type rankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.RetrievalResult, topN int) ([]domain.RetrievalResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = candidate.Content
	}
	body, err := json.Marshal(rerankRequest{Query: query, Candidates: texts, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var response rerankResponse
	call := func(ctx context.Context) error {
		return c.score(ctx, body, &response)
	}
	if c.executor != nil {
		err = c.executor.ExecuteOnce(ctx, "rerank.score", call, classifyScoreError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievalResult, 0, len(response.Ranking))
	for _, entry := range response.Ranking {
		if entry.Index < 0 || entry.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank: index %d out of range for %d candidates", entry.Index, len(candidates))
		}
		result := candidates[entry.Index]
		result.Score = entry.Score
		out = append(out, result)
	}
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func (c *Client) score(ctx context.Context, body []byte, response *rerankResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return fmt.Errorf("rerank status: %s", resp.Status)
		}
		return fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
