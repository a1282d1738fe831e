package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// streamSSE forwards stream events to the client as server-sent events, one
// `data:` frame per event, flushed immediately so progress reaches the
// browser while the model is still working. The producer closes the channel
// after a terminal done or error event; there is no extra end marker.
func streamSSE(w http.ResponseWriter, events <-chan domain.StreamEvent) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return fmt.Errorf("response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal stream event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return fmt.Errorf("write stream event: %w", err)
		}
		flusher.Flush()
	}
	return nil
}
