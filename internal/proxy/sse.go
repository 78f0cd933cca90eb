package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// commentReplacer escapes newlines in SSE comment fields to maintain protocol integrity.
// SSE protocol requires multi-line comments to prefix each line with ":".
var commentReplacer = strings.NewReplacer(
	"\n", "\n: ",
	"\r", "\\r",
)

// fieldReplacer strips line breaks from single-line SSE fields such as event names.
var fieldReplacer = strings.NewReplacer(
	"\n", "",
	"\r", "",
)

// Pre-allocated byte slices for SSE formatting to eliminate allocations on every write.
var (
	sseIDPrefix      = []byte("id: ")
	sseRetryPrefix   = []byte("retry: ")
	sseEventPrefix   = []byte("event: ")
	sseDataPrefix    = []byte("data: ")
	sseCommentPrefix = []byte(": ")
	sseLineEnd       = []byte("\n")
	sseTerminator    = []byte("\n\n")
)

// SSEWriter wraps http.ResponseWriter with Server-Sent Events protocol methods.
// Handles JSON marshaling, event formatting, and flushing for streaming responses.
// Events are numbered from 1 so clients can tell whether they missed any.
// Not safe for concurrent use.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	lastID  uint64
}

// NewSSEWriter validates flushing support and sets required SSE headers.
// Returns error if the ResponseWriter doesn't implement http.Flusher,
// which is required for streaming responses.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Connection", "keep-alive")

	// Allow caller to override Cache-Control for custom caching strategies
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent marshals v to JSON and writes it as an SSE event named event,
// which browsers dispatch to addEventListener(event, ...). An empty name
// produces a default "message" event. Flushes immediately for real-time delivery.
func (s *SSEWriter) WriteEvent(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	s.lastID++
	if _, err := s.w.Write(sseIDPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(strconv.AppendUint(nil, s.lastID, 10)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseLineEnd); err != nil {
		return err
	}

	if event != "" {
		if _, err := s.w.Write(sseEventPrefix); err != nil {
			return err
		}
		if _, err := fieldReplacer.WriteString(s.w, event); err != nil {
			return err
		}
		if _, err := s.w.Write(sseLineEnd); err != nil {
			return err
		}
	}

	// Compact JSON never contains raw newlines, a single data line suffices
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteRetry sets the delay after which an EventSource reconnects when the
// stream drops.
func (s *SSEWriter) WriteRetry(d time.Duration) error {
	if _, err := s.w.Write(sseRetryPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(strconv.AppendInt(nil, d.Milliseconds(), 10)); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteComment writes an SSE comment line (begins with ':').
// Comments are ignored by SSE clients and serve as keep-alive heartbeats.
func (s *SSEWriter) WriteComment(comment string) error {
	if _, err := s.w.Write(sseCommentPrefix); err != nil {
		return err
	}

	if _, err := commentReplacer.WriteString(s.w, comment); err != nil {
		return err
	}

	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}
