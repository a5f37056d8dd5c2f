package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/detector"
)

// assessLogin scores a successful login against the account's history. It
// must run before the login_success event is appended.
func (e *Engine) assessLogin(ctx context.Context, account Account, client ClientContext, now time.Time) RiskAssessment {
	if e.detector == nil {
		return RiskAssessment{
			Risk:       string(detector.RiskLow),
			Action:     string(detector.ActionAllow),
			DeviceType: string(detector.ClassifyDevice(client.UserAgent)),
		}
	}

	res := e.detector.Evaluate(ctx, detector.Input{
		AccountID: account.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Now:       now,
	})

	if res.Degraded {
		e.metricInc(MetricDetectorDegraded)
		e.log().WarnContext(ctx, "suspicious login check degraded", "account_id", account.ID, "error", res.Err)
	}

	switch res.Action {
	case detector.ActionWarn:
		e.metricInc(MetricSuspiciousLoginWarn)
	case detector.ActionAlert:
		e.metricInc(MetricSuspiciousLoginAlert)
	}

	if res.Suspicious {
		e.recordAudit(ctx, audit.Event{
			Type:      audit.TypeSuspiciousActivity,
			Severity:  severityFor(res.Risk),
			AccountID: account.ID,
			Email:     account.Email,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Metadata: map[string]string{
				"reasons":     strings.Join(res.Reasons, ","),
				"risk":        string(res.Risk),
				"action":      string(res.Action),
				"device_type": string(res.DeviceType),
			},
			Timestamp: now,
		})
	}

	return RiskAssessment{
		Suspicious: res.Suspicious,
		Reasons:    res.Reasons,
		Risk:       string(res.Risk),
		Action:     string(res.Action),
		DeviceType: string(res.DeviceType),
		Degraded:   res.Degraded,
	}
}

func severityFor(r detector.Risk) audit.Severity {
	switch r {
	case detector.RiskHigh:
		return audit.SeverityCritical
	case detector.RiskMedium:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}

// loginNotification returns the email the account holder should receive for
// this login, or nil.
func loginNotification(account Account, client ClientContext, risk RiskAssessment, now time.Time) *Notification {
	var kind TemplateKind
	switch detector.Action(risk.Action) {
	case detector.ActionWarn:
		kind = TemplateNewLogin
	case detector.ActionAlert:
		kind = TemplateSuspiciousActivity
	default:
		return nil
	}
	return &Notification{
		To:   account.Email,
		Kind: kind,
		Data: map[string]string{
			"name":        account.Name,
			"ip":          client.IP,
			"device_type": risk.DeviceType,
			"reasons":     strings.Join(risk.Reasons, ", "),
			"time":        now.UTC().Format(time.RFC3339),
		},
	}
}
