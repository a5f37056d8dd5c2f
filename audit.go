package authcore

import (
	"io"

	"github.com/MrEthical07/authcore/internal/audit"
)

// AuditEvent is an immutable audit record.
type AuditEvent = audit.Event

// AuditEventType is the closed set of audit event kinds.
type AuditEventType = audit.Type

// AuditSeverity tiers events for alerting.
type AuditSeverity = audit.Severity

// AuditSink receives audit events forwarded by the engine.
type AuditSink = audit.Sink

// AuditQuery selects stored audit events. A query scoped to an account must
// also name a Type.
type AuditQuery = audit.Query

const (
	AuditLoginSuccess       = audit.TypeLoginSuccess
	AuditLoginFailed        = audit.TypeLoginFailed
	AuditLoginRateLimited   = audit.TypeLoginRateLimited
	AuditLoginLocked        = audit.TypeLoginLocked
	AuditSuspiciousActivity = audit.TypeSuspiciousActivity
	AuditAccountLocked      = audit.TypeAccountLocked
	AuditPasswordChanged    = audit.TypePasswordChanged

	SeverityInfo     = audit.SeverityInfo
	SeverityWarning  = audit.SeverityWarning
	SeverityCritical = audit.SeverityCritical
)

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink is an exported constant or variable used by the authentication engine.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink is an exported constant or variable used by the authentication engine.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
