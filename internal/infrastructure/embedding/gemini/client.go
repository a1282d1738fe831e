package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
)

// Dimensions is the embedding width; document_chunks.embedding is vector(768).
const Dimensions = 768

// Asymmetric retrieval: documents and queries embed with different task
// types, so the two methods are not interchangeable.
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	cache      *queryCache
}

type Options struct {
	Timeout            time.Duration
	QueryCacheSize     int
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimPrefix(model, "models/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		cache:      newQueryCache(options.QueryCacheSize),
	}
}

type embedPart struct {
	Text string `json:"text"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedRequest struct {
	Model                string       `json:"model"`
	Content              embedContent `json:"content"`
	TaskType             string       `json:"taskType"`
	OutputDimensionality int          `json:"outputDimensionality"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embeddingValues struct {
	Values []float32 `json:"values"`
}

type batchEmbedResponse struct {
	Embeddings []embeddingValues `json:"embeddings"`
}

type embedResponse struct {
	Embedding embeddingValues `json:"embedding"`
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := batchEmbedRequest{Requests: make([]embedRequest, 0, len(texts))}
	for _, text := range texts {
		reqBody.Requests = append(reqBody.Requests, c.embedRequest(text, taskTypeDocument))
	}

	var response batchEmbedResponse
	if err := c.post(ctx, ":batchEmbedContents", reqBody, &response, "embed documents"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d embeddings for %d texts", len(response.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(response.Embeddings))
	for i, e := range response.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.get(text); ok {
		return vec, nil
	}

	var response embedResponse
	if err := c.post(ctx, ":embedContent", c.embedRequest(text, taskTypeQuery), &response, "embed query"); err != nil {
		return nil, err
	}
	if len(response.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding")
	}

	c.cache.add(text, response.Embedding.Values)
	return response.Embedding.Values, nil
}

func (c *Client) embedRequest(text, taskType string) embedRequest {
	return embedRequest{
		Model:                "models/" + c.model,
		Content:              embedContent{Parts: []embedPart{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: Dimensions,
	}
}
