package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-publisher/internal/publish"
	"github.com/jonathan/cv-publisher/internal/types"
)

// SSE event names written by the publish stream.
const (
	EventStatus = "status"
	EventLog    = "log"
	EventResult = "result"
	EventError  = "error"
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

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteTransition sends a status change, or a build log line when the
// status did not change. The terminal result is sent separately.
func (s *SSEWriter) WriteTransition(t publish.Transition) error {
	if t.From == t.To {
		return s.WriteEvent(EventLog, map[string]any{"job_id": t.JobID, "text": t.Message, "at": t.At})
	}
	return s.WriteEvent(EventStatus, map[string]any{
		"job_id":  t.JobID,
		"from":    t.From,
		"status":  t.To,
		"message": t.Message,
		"at":      t.At,
	})
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent(EventError, map[string]string{"error": message}) //nolint:errcheck
}

// WriteResult sends the terminal result
func (s *SSEWriter) WriteResult(result *types.DeploymentResult) {
	s.WriteEvent(EventResult, result) //nolint:errcheck
}
