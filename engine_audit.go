package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/audit"
)

// auditOutcome is the result of one audit write. A failed write is reported
// to the operational log and never returned to the caller of a flow.
type auditOutcome struct {
	Event audit.Event
	Err   error
}

func (o auditOutcome) Stored() bool { return o.Err == nil }

// recordAudit appends ev to the audit store and forwards it to the sink.
func (e *Engine) recordAudit(ctx context.Context, ev audit.Event) auditOutcome {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}

	stored, err := e.auditStore.Append(ctx, ev)
	if err != nil {
		e.metricInc(MetricAuditWriteFailure)
		e.log().ErrorContext(ctx, "audit write failed",
			"type", string(ev.Type),
			"account_id", ev.AccountID,
			"error", err,
		)
		stored = ev
	}

	e.audit.Emit(ctx, stored)
	return auditOutcome{Event: stored, Err: err}
}

// auditDeliveryFailed is called by the dispatcher after the sink rejected an
// event on every retry.
func (e *Engine) auditDeliveryFailed(ev audit.Event, err error) {
	e.metricInc(MetricAuditWriteFailure)
	e.log().Error("audit sink delivery failed", "type", string(ev.Type), "event_id", ev.ID, "error", err)
}

// AuditEvents returns stored audit events, newest first. Account-scoped
// queries must name a Type.
func (e *Engine) AuditEvents(ctx context.Context, q AuditQuery) ([]AuditEvent, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	events, err := e.auditStore.Query(ctx, q)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidEvent) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return events, nil
}
