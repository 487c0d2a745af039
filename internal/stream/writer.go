package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/emitkithq/emitkit/internal/dto"
)

// FrameWriter delivers one message to the client
type FrameWriter interface {
	WriteFrame(msg dto.StreamMessage) error
}

// SSEWriter encodes messages as "data: <json>\n\n" frames
type SSEWriter struct {
	w     io.Writer
	flush func()
}

// NewSSEWriter writes frames to w, calling flush (if non-nil) after each one.
func NewSSEWriter(w io.Writer, flush func()) *SSEWriter {
	return &SSEWriter{w: w, flush: flush}
}

func (s *SSEWriter) WriteFrame(msg dto.StreamMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// SetHeaders prepares a response for an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
