package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strconv"
	"sync"
	"time"
)

// Event is the canonical audit event model used by internal dispatching and root APIs.
//
// Session is a fingerprint of the session id; raw ids and payloads never appear in events.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Session   string            `json:"session,omitempty"`
	Table     string            `json:"table,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	// EventTamperSuspected is emitted when a stored ciphertext fails authentication.
	EventTamperSuspected = "session_tamper_suspected"
	// EventStorageFailure is emitted when a lifecycle operation fails against the database.
	EventStorageFailure = "session_storage_failure"
	// EventSweep is emitted after every gc sweep attempt.
	EventSweep = "session_gc_sweep"
)

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel. Events that do not
// fit are discarded rather than stalling the dispatcher.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	default:
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
}

// LogSink prints events through a standard logger, one line per event.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	status := "ok"
	if !event.Success {
		status = "failed"
	}
	line := "goSession audit: " + event.EventType + " " + status
	if event.Session != "" {
		line += " session=" + event.Session
	}
	if event.Error != "" {
		line += " error=" + strconv.Quote(event.Error)
	}
	s.logger.Print(line)
}
