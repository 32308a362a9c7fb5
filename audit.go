package goSession

import (
	"io"
	"log"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one security-relevant store event. Session carries an id
// fingerprint, never the raw id.
type AuditEvent = audit.Event

// AuditSink receives audit events from the store's dispatcher.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditTamperSuspected = audit.EventTamperSuspected
	AuditStorageFailure  = audit.EventStorageFailure
	AuditSweep           = audit.EventSweep
)

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// NewChannelSink returns a sink that buffers events on a channel.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink returns a sink that prints events through logger.
func NewLogSink(logger *log.Logger) *audit.LogSink {
	return audit.NewLogSink(logger)
}
