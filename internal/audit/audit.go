package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Type is the closed set of audit event kinds.
type Type string

const (
	TypeLoginSuccess       Type = "login_success"
	TypeLoginFailed        Type = "login_failed"
	TypeLoginRateLimited   Type = "login_blocked_rate_limit"
	TypeLoginLocked        Type = "login_blocked_lockout"
	TypeSuspiciousActivity Type = "suspicious_activity"
	TypeAccountLocked      Type = "account_locked"
	TypePasswordChanged    Type = "password_changed"
)

// Types lists every valid Type.
var Types = []Type{
	TypeLoginSuccess,
	TypeLoginFailed,
	TypeLoginRateLimited,
	TypeLoginLocked,
	TypeSuspiciousActivity,
	TypeAccountLocked,
	TypePasswordChanged,
}

// Valid reports whether t is a member of the closed set.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Severity tiers events for alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the canonical audit record. Events are immutable once stored.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Severity  Severity          `json:"severity"`
	AccountID string            `json:"account_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives emitted audit events. A returned error makes the dispatcher
// retry delivery a bounded number of times.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) error { return nil }

// ChannelSink writes audit events into a buffered channel.
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

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
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

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data = append(data, '\n')
	_, err = s.writer.Write(data)
	return err
}
