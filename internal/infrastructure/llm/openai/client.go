// Package openai implements the chat gateway against an OpenAI-compatible
// chat-completions endpoint. The default deployment points it at Gemini's
// compatibility surface, but nothing here is Gemini-specific.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
)

// Low temperature keeps tax answers close to the retrieved text.
const defaultTemperature = 0.1

type Client struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	Temperature        float64
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	temperature := options.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (*domain.CompletionResult, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Temperature: c.temperature,
		Tools:       toWireTools(tools),
	}

	var response chatResponse
	if err := c.postJSON(ctx, reqBody, &response, "completion"); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("completion: no choices in response")
	}

	message := response.Choices[0].Message
	model := response.Model
	if model == "" {
		model = c.model
	}
	return &domain.CompletionResult{
		Content:   message.Content,
		ToolCalls: fromWireToolCalls(message.ToolCalls),
		Model:     model,
	}, nil
}

// Stream runs a streaming completion, invoking onDelta for each content
// fragment. Runs under the breaker but never retries: deltas already handed
// to the caller cannot be replayed.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage, onDelta func(delta string)) (*domain.CompletionResult, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Temperature: c.temperature,
		Stream:      true,
	}

	var result *domain.CompletionResult
	call := func(ctx context.Context) error {
		res, err := c.streamOnce(ctx, reqBody, onDelta)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.ExecuteOnce(ctx, "llm.stream", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("stream completion", err)
	}
	return result, nil
}
