package rerank

import (
	"context"
	"errors"

	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
)

// classifyScoreError only decides what the breaker counts; scoring is never
// retried. DeadlineExceeded counts too: with a tight client timeout it is
// nearly always the sidecar hanging, not the caller giving up.
func classifyScoreError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
