// Package mcpadapter exposes the document search and tax calculator tools
// over the Model Context Protocol so local agent clients can call them
// without going through the HTTP API.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/usecase"
)

const serverVersion = "1.0.0"

// Server wraps an MCP stdio server around the tool dispatcher. Tools carry
// the same names and raw JSON schemas the completion gateway advertises, so
// MCP clients and the model see one contract.
type Server struct {
	srv        *server.MCPServer
	dispatcher *usecase.ToolDispatcher
	logger     *slog.Logger
}

func New(dispatcher *usecase.ToolDispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		srv: server.NewMCPServer(
			"nz-tax-assistant",
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		dispatcher: dispatcher,
		logger:     logger,
	}
	for _, def := range usecase.ToolDefinitions() {
		s.srv.AddTool(
			mcp.NewToolWithRawSchema(def.Name, def.Description, def.Schema),
			s.handleTool(def.Name),
		)
	}
	return s
}

// Serve runs the server over stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.srv)
}

// handleTool adapts one dispatcher tool to the MCP calling convention.
// Domain failures (bad arguments, unknown years) become tool error results
// the client can display; infrastructure failures stay protocol errors.
func (s *Server) handleTool(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetRawArguments())
		if err != nil {
			return nil, fmt.Errorf("encode %s arguments: %w", name, err)
		}

		payload, _, err := s.dispatcher.Execute(ctx, domain.ToolCall{Name: name, Arguments: string(args)})
		if err != nil {
			if domain.IsKind(err, domain.ErrInvalidInput) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			s.logger.Error("tool execution failed", "tool", name, "error", err)
			return nil, err
		}
		if msg, ok := errorPayload(payload); ok {
			return mcp.NewToolResultError(msg), nil
		}

		text, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// errorPayload reports whether the dispatcher folded a domain error into the
// payload, as it does for calculator failures and unknown tools.
func errorPayload(payload any) (string, bool) {
	m, ok := payload.(map[string]string)
	if !ok || len(m) != 1 {
		return "", false
	}
	msg, ok := m["error"]
	return msg, ok && msg != ""
}
