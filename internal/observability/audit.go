package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one durable change to the memory store
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	MemoryID  string         `json:"memory_id,omitempty"`
	Action    string         `json:"action"` // e.g. "arbitrate", "delete", "consolidate"
	Status    string         `json:"status"` // e.g. "update", "discard", "success"
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the process audit logger, writing to stderr
// until InitAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = &AuditLogger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}
	return auditInst
}

// InitAuditLogger redirects audit events to the file at path.
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst != nil && auditInst.file != nil {
		_ = auditInst.file.Close()
	}
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	return nil
}

// DisableAudit drops audit events, for callers that did not configure a file.
func DisableAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = &AuditLogger{logger: zerolog.Nop()}
}

// Record emits an audit event to the log and as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.memory_id", event.MemoryID),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("memory_id", event.MemoryID).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func RecordMemoryAudit(ctx context.Context, action, memoryID, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "memory",
		MemoryID: memoryID,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}
