package httphandler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// eventWriter frames stream events for the wire: one `data: <json>` line
// per event, terminated by a blank line, flushed immediately. It owns all
// framing state and never buffers more than one event at a time.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	buf     bytes.Buffer
}

// newEventWriter prepares w for event streaming and returns the writer.
// Returns an error if the connection does not support flushing.
func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventWriter{w: w, flusher: flusher}, nil
}

// WriteEvent frames and writes a single event. A write failure means the
// client is gone; the caller stops encoding but the run continues.
func (ew *eventWriter) WriteEvent(v any) error {
	ew.buf.Reset()
	ew.buf.WriteString("data: ")
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ew.buf.Write(data)
	ew.buf.WriteString("\n\n")

	if _, err := ew.w.Write(ew.buf.Bytes()); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	ew.flusher.Flush()
	return nil
}
