package usecase

import (
	"context"
	"strings"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

const rewriteSystemPrompt = "You are a query rewriter. Given a conversation history and a follow-up " +
	"question, rewrite the follow-up as a standalone question suitable for " +
	"searching a document database about New Zealand tax. Keep it concise. " +
	"If the question is already standalone, return it unchanged. " +
	"Return ONLY the rewritten question — no explanation or preamble."

// rewriteQuery turns a follow-up question into a standalone retrieval query.
// Without history there is nothing to resolve, so no completion call is made
// and single-turn asks stay at baseline latency. Rewrite failures fall back
// to the original question; retrieval still proceeds.
func (uc *Orchestrator) rewriteQuery(ctx context.Context, question string, history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return question
	}

	recent := history
	if len(recent) > maxHistoryTurns {
		recent = recent[len(recent)-maxHistoryTurns:]
	}

	messages := make([]domain.ChatMessage, 0, len(recent)*2+2)
	messages = append(messages, domain.SystemMessage(rewriteSystemPrompt))
	for _, turn := range recent {
		messages = append(messages,
			domain.UserMessage(turn.Question),
			domain.AssistantMessage(turn.Answer),
		)
	}
	messages = append(messages, domain.UserMessage(question))

	result, err := uc.llm.Complete(ctx, messages, nil)
	if err != nil {
		uc.logger.Warn("query_rewrite_failed", "error", err)
		return question
	}

	rewritten := strings.TrimSpace(result.Content)
	if rewritten == "" {
		return question
	}
	if rewritten != question {
		uc.logger.Info("query_rewritten", "from", clip(question, 80), "to", clip(rewritten, 80))
	}
	return rewritten
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
