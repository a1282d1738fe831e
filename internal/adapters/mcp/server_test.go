package mcpadapter

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/usecase"
)

type fakeSearcher struct {
	results []domain.RetrievalResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ domain.SearchOptions) ([]domain.RetrievalResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestServer(searcher *fakeSearcher) *Server {
	return New(usecase.NewToolDispatcher(searcher, 5), nil)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected single content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestHandleToolIncomeTax(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	handler := s.handleTool("calculate_income_tax")

	result, err := handler(context.Background(), callRequest("calculate_income_tax", map[string]any{
		"annual_income": 65000.0,
		"tax_year":      "2025-26",
	}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, `"total_tax": 11720.5`) {
		t.Fatalf("expected total tax in result, got %s", text)
	}
	if !strings.Contains(text, `"effective_rate": 18.03`) {
		t.Fatalf("expected effective rate in result, got %s", text)
	}
}

func TestHandleToolSearch(t *testing.T) {
	s := newTestServer(&fakeSearcher{results: []domain.RetrievalResult{
		{Content: "KiwiSaver contributions", SectionTitle: "Contributions", SourceURL: "https://ird.govt.nz/kiwisaver", SourceTitle: "KiwiSaver"},
	}})
	handler := s.handleTool("search_tax_documents")

	result, err := handler(context.Background(), callRequest("search_tax_documents", map[string]any{
		"query": "kiwisaver contributions",
	}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %s", resultText(t, result))
	}
	if text := resultText(t, result); !strings.Contains(text, "https://ird.govt.nz/kiwisaver") {
		t.Fatalf("expected source URL in result, got %s", text)
	}
}

func TestHandleToolCalculatorErrorIsToolError(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	handler := s.handleTool("calculate_income_tax")

	result, err := handler(context.Background(), callRequest("calculate_income_tax", map[string]any{
		"annual_income": 65000.0,
		"tax_year":      "1999-00",
	}))
	if err != nil {
		t.Fatalf("expected domain error as tool result, got %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result for unsupported year, got %s", resultText(t, result))
	}
}

func TestHandleToolInvalidArguments(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	handler := s.handleTool("calculate_income_tax")

	result, err := handler(context.Background(), callRequest("calculate_income_tax", map[string]any{
		"annual_income": "lots",
	}))
	if err != nil {
		t.Fatalf("expected invalid arguments as tool result, got %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result for bad argument types")
	}
}

func TestHandleToolSearchFailureIsProtocolError(t *testing.T) {
	s := newTestServer(&fakeSearcher{err: context.DeadlineExceeded})
	handler := s.handleTool("search_tax_documents")

	_, err := handler(context.Background(), callRequest("search_tax_documents", map[string]any{
		"query": "anything",
	}))
	if err == nil {
		t.Fatalf("expected protocol error for search infrastructure failure")
	}
}
