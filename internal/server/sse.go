package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/pipeline"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// completeEvent is the payload of the final event of a streamed run
type completeEvent struct {
	RunID  string      `json:"run_id,omitempty"`
	Status string      `json:"status"`
	Stats  db.RunStats `json:"stats"`
}

// WriteComplete sends a completion event
func (s *SSEWriter) WriteComplete(result *pipeline.Result) {
	ev := completeEvent{Status: string(result.Status), Stats: result.Stats}
	if result.RunID != uuid.Nil {
		ev.RunID = result.RunID.String()
	}
	s.WriteEvent("complete", ev) //nolint:errcheck
}
