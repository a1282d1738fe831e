package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/metrics"
)

// maxToolRounds bounds the completion loop. A model that keeps requesting
// tools sees the bound reached and its last response is used as-is, so a
// non-converging search loop cannot spin forever.
const maxToolRounds = 3

// Orchestrator answers tax questions: rewrite follow-ups, retrieve context,
// run the tool-calling completion loop, post-process, and log the outcome.
type Orchestrator struct {
	retriever  ports.DocumentSearcher
	llm        ports.ChatCompleter
	dispatcher *ToolDispatcher
	queryLog   ports.QueryLogStore
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the answer pipeline. queryLog and m may be nil; the
// pipeline then runs without persistence or metrics.
func NewOrchestrator(
	retriever ports.DocumentSearcher,
	llm ports.ChatCompleter,
	dispatcher *ToolDispatcher,
	queryLog ports.QueryLogStore,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		retriever:  retriever,
		llm:        llm,
		dispatcher: dispatcher,
		queryLog:   queryLog,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// askRun accumulates per-request state across tool rounds. Every request
// gets a fresh value; nothing here is shared.
type askRun struct {
	allChunks   []domain.RetrievalResult
	toolsUsed   []domain.ToolUsed
	toolSet     map[string]struct{}
	auditLog    []domain.ToolCallRecord
	completions int
	rounds      int
}

func newAskRun(initial []domain.RetrievalResult) *askRun {
	run := &askRun{
		allChunks: make([]domain.RetrievalResult, 0, len(initial)+8),
		toolsUsed: make([]domain.ToolUsed, 0, 4),
		toolSet:   make(map[string]struct{}, 4),
		auditLog:  make([]domain.ToolCallRecord, 0, 4),
	}
	run.allChunks = append(run.allChunks, initial...)
	return run
}

func (uc *Orchestrator) Ask(ctx context.Context, question string, history []domain.ConversationTurn) (*domain.Answer, error) {
	started := uc.now()
	uc.logger.Info("ask_received", "question", clip(question, 80))

	standalone := uc.rewriteQuery(ctx, question, history)

	chunks, err := uc.retriever.Search(ctx, standalone, domain.SearchOptions{})
	if err != nil {
		uc.finishAsk(ctx, "ask", started, question, "", "", nil, nil, err)
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	run := newAskRun(chunks)
	messages := buildAnswerMessages(question, chunks, history, uc.now())

	result, _, err := uc.completeWithTools(ctx, messages, run, nil)
	if err != nil {
		uc.finishAsk(ctx, "ask", started, question, "", "", run, nil, err)
		return nil, err
	}

	sources := assembleSources(run.allChunks)
	answer := finalizeAnswer(result.Content, sources)

	queryID := uc.finishAsk(ctx, "ask", started, question, answer, result.Model, run, sources, nil)

	return &domain.Answer{
		Text:    answer,
		Sources: sources,
		Model:   result.Model,
		Tools:   run.toolsUsed,
		QueryID: queryID,
	}, nil
}

// AskStream answers like Ask but emits typed progress events. The channel is
// closed when the producing goroutine exits; every failure path ends with a
// terminal error event so clients never hang on a half-rendered stream.
func (uc *Orchestrator) AskStream(ctx context.Context, question string, history []domain.ConversationTurn) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, 8)
	go func() {
		defer close(events)
		uc.streamAnswer(ctx, question, history, events)
	}()
	return events
}

func (uc *Orchestrator) streamAnswer(ctx context.Context, question string, history []domain.ConversationTurn, events chan<- domain.StreamEvent) {
	started := uc.now()
	uc.logger.Info("ask_received", "question", clip(question, 80), "stream", true)

	uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventStatus, Message: "Searching tax documents..."})

	standalone := uc.rewriteQuery(ctx, question, history)

	chunks, err := uc.retriever.Search(ctx, standalone, domain.SearchOptions{})
	if err != nil {
		uc.finishAsk(ctx, "ask_stream", started, question, "", "", nil, nil, err)
		uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventError, Error: err.Error()})
		return
	}

	run := newAskRun(chunks)
	messages := buildAnswerMessages(question, chunks, history, uc.now())

	uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventStatus, Message: "Generating answer..."})

	onToolUse := func(used domain.ToolUsed) {
		uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventToolUse, Tool: &used})
	}
	result, transcript, err := uc.completeWithTools(ctx, messages, run, onToolUse)
	if err != nil {
		uc.finishAsk(ctx, "ask_stream", started, question, "", "", run, nil, err)
		uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventError, Error: err.Error()})
		return
	}

	sources := assembleSources(run.allChunks)

	// Tool rounds are never streamed: argument JSON only makes sense as a
	// complete response. When the loop already produced the answer text it
	// goes out as one chunk; otherwise a dedicated streaming completion over
	// the accumulated transcript generates it delta by delta.
	answer := ""
	model := result.Model
	if result.Content != "" {
		answer = finalizeAnswer(result.Content, sources)
		uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventChunk, Delta: answer})
	} else {
		streamed, streamErr := uc.llm.Stream(ctx, transcript, func(delta string) {
			uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventChunk, Delta: delta})
		})
		run.completions++
		if streamErr != nil {
			uc.finishAsk(ctx, "ask_stream", started, question, "", "", run, nil, streamErr)
			uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventError, Error: streamErr.Error()})
			return
		}
		answer = finalizeAnswer(streamed.Content, sources)
		model = streamed.Model
	}

	uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventSources, Sources: sources})

	queryID := uc.finishAsk(ctx, "ask_stream", started, question, answer, model, run, sources, nil)

	uc.emit(ctx, events, domain.StreamEvent{Type: domain.EventDone, Model: model, QueryID: queryID})
}

// completeWithTools runs the completion loop. While the model keeps calling
// tools and rounds remain, dispatch every call, append its result to the
// conversation, and complete again. onToolUse fires once per distinct tool.
// The returned transcript includes every tool turn that was exchanged.
func (uc *Orchestrator) completeWithTools(
	ctx context.Context,
	messages []domain.ChatMessage,
	run *askRun,
	onToolUse func(domain.ToolUsed),
) (*domain.CompletionResult, []domain.ChatMessage, error) {
	result, err := uc.llm.Complete(ctx, messages, toolDefinitions)
	run.completions++
	if err != nil {
		return nil, nil, fmt.Errorf("completion: %w", err)
	}

	for len(result.ToolCalls) > 0 && run.rounds < maxToolRounds {
		run.rounds++

		messages = append(messages, domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			payload, chunks, execErr := uc.dispatcher.Execute(ctx, call)
			if execErr != nil {
				if uc.metrics != nil {
					uc.metrics.RecordToolCall("api", call.Name, "error")
				}
				return nil, nil, execErr
			}
			run.allChunks = append(run.allChunks, chunks...)
			run.auditLog = append(run.auditLog, domain.ToolCallRecord{Name: call.Name, Arguments: call.Arguments})

			if _, seen := run.toolSet[call.Name]; !seen {
				run.toolSet[call.Name] = struct{}{}
				used := domain.ToolUsed{Name: call.Name, Label: toolLabel(call.Name)}
				run.toolsUsed = append(run.toolsUsed, used)
				if onToolUse != nil {
					onToolUse(used)
				}
			}

			body, marshalErr := json.Marshal(payload)
			if marshalErr != nil {
				return nil, nil, fmt.Errorf("encode tool result: %w", marshalErr)
			}
			messages = append(messages, domain.ToolResultMessage(call.ID, string(body)))

			if uc.metrics != nil {
				uc.metrics.RecordToolCall("api", call.Name, toolStatus(payload))
			}
			uc.logger.Info("tool_executed", "tool", call.Name, "round", run.rounds)
		}

		result, err = uc.llm.Complete(ctx, messages, toolDefinitions)
		run.completions++
		if err != nil {
			return nil, nil, fmt.Errorf("completion: %w", err)
		}
	}

	return result, messages, nil
}

// finishAsk records metrics and the best-effort query log entry, returning
// the persisted query id when logging succeeded.
func (uc *Orchestrator) finishAsk(
	ctx context.Context,
	endpoint string,
	started time.Time,
	question, answer, model string,
	run *askRun,
	sources []domain.SourceReference,
	askErr error,
) string {
	latency := uc.now().Sub(started)

	completions, rounds := 0, 0
	var audit []domain.ToolCallRecord
	var chunkIDs []string
	if run != nil {
		completions, rounds = run.completions, run.rounds
		audit = run.auditLog
		chunkIDs = touchedChunkIDs(run.allChunks)
	}

	status := "success"
	errMessage := ""
	if askErr != nil {
		status = "error"
		errMessage = askErr.Error()
	}

	if uc.metrics != nil {
		uc.metrics.RecordAsk("api", endpoint, status, completions, rounds, latency)
	}
	uc.logger.Info("ask_finished",
		"endpoint", endpoint,
		"status", status,
		"latency_ms", latency.Milliseconds(),
		"completions", completions,
		"tool_rounds", rounds,
		"sources", len(sources),
	)

	if uc.queryLog == nil {
		return ""
	}
	queryID, err := uc.queryLog.InsertQuery(ctx, &domain.QueryRecord{
		Question:  question,
		Answer:    answer,
		Model:     model,
		LatencyMS: int(latency.Milliseconds()),
		ToolCalls: audit,
		ChunkIDs:  chunkIDs,
		Error:     errMessage,
	})
	if err != nil {
		// Logging must never break the answer path.
		uc.logger.Warn("query_log_failed", "error", err)
		return ""
	}
	return queryID
}

// finalizeAnswer applies the post-processing chain in its fixed order:
// citation blocks the prompt forbids are stripped first, then bare URLs
// become links, then a citation footer is added if none survived.
func finalizeAnswer(answer string, sources []domain.SourceReference) string {
	answer = stripTrailingSources(answer)
	answer = linkifyBareURLs(answer, sources)
	return ensureCitations(answer, sources)
}

func (uc *Orchestrator) emit(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) {
	if uc.metrics != nil {
		uc.metrics.RecordStreamEvent("api", string(event.Type))
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

// touchedChunkIDs collects distinct chunk ids across every retrieval the
// request performed, in first-seen order. Results produced outside the
// chunk store carry no id and are skipped.
func touchedChunkIDs(chunks []domain.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.ChunkID == "" {
			continue
		}
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		ids = append(ids, c.ChunkID)
	}
	return ids
}

// assembleSources deduplicates chunks by URL in first-seen order. A section
// title is attached only when exactly one chunk maps to the URL; showing one
// of several sections would be misleading.
func assembleSources(chunks []domain.RetrievalResult) []domain.SourceReference {
	counts := make(map[string]int, len(chunks))
	for _, c := range chunks {
		counts[c.SourceURL]++
	}

	seen := make(map[string]struct{}, len(chunks))
	sources := make([]domain.SourceReference, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.SourceURL]; ok {
			continue
		}
		seen[c.SourceURL] = struct{}{}

		ref := domain.SourceReference{URL: c.SourceURL, Title: c.SourceTitle}
		if counts[c.SourceURL] == 1 {
			ref.SectionTitle = c.SectionTitle
		}
		sources = append(sources, ref)
	}
	return sources
}

func toolStatus(payload any) string {
	if m, ok := payload.(map[string]string); ok {
		if _, isErr := m["error"]; isErr {
			return "error"
		}
	}
	return "ok"
}
