package detector

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
)

const (
	ReasonNewIP          = "new IP"
	ReasonNewDevice      = "new device type"
	ReasonRecentFailures = "recent failures"
	ReasonUnusualHour    = "unusual hour"
)

// Risk grades a login by the number of reasons raised.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Action is what the caller should do with the login. There is no blocking
// action.
type Action string

const (
	ActionAllow Action = "allow"
	// ActionWarn allows the login and sends a new-login notification.
	ActionWarn Action = "warn"
	// ActionAlert allows the login and sends a suspicious-activity notification.
	ActionAlert Action = "alert"
)

// Config tunes the heuristics.
type Config struct {
	RecentFailureWindow    time.Duration
	RecentFailureThreshold int
	UnusualHourMinLogins   int
	UnusualHourMinAverage  float64
	HistoryLimit           int
	Lookback               time.Duration
	Location               *time.Location
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		RecentFailureWindow:    time.Hour,
		RecentFailureThreshold: 3,
		UnusualHourMinLogins:   10,
		UnusualHourMinAverage:  0.25,
		HistoryLimit:           500,
		Lookback:               90 * 24 * time.Hour,
		Location:               time.UTC,
	}
}

// History is the subset of the audit store the detector reads.
type History interface {
	Query(ctx context.Context, q audit.Query) ([]audit.Event, error)
	Count(ctx context.Context, accountID string, t audit.Type, since time.Time) (int64, error)
}

// Input describes the login being evaluated.
type Input struct {
	AccountID string
	IP        string
	UserAgent string
	Now       time.Time
}

// Result is the detector verdict.
type Result struct {
	Suspicious bool
	Reasons    []string
	Risk       Risk
	Action     Action
	DeviceType DeviceType
	// Degraded is set when history could not be read.
	Degraded bool
	Err      error
}

// Detector evaluates logins against stored history.
type Detector struct {
	history History
	config  Config
}

// New creates a Detector.
func New(history History, cfg Config) *Detector {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Detector{history: history, config: cfg}
}

// Evaluate must be called before the current login is appended to history.
func (d *Detector) Evaluate(ctx context.Context, in Input) Result {
	device := ClassifyDevice(in.UserAgent)

	successes, err := d.history.Query(ctx, audit.Query{
		AccountID: in.AccountID,
		Type:      audit.TypeLoginSuccess,
		Since:     in.Now.Add(-d.config.Lookback),
		Limit:     d.config.HistoryLimit,
	})
	if err != nil {
		return degraded(device, err)
	}

	failures, err := d.history.Count(ctx, in.AccountID, audit.TypeLoginFailed, in.Now.Add(-d.config.RecentFailureWindow))
	if err != nil {
		return degraded(device, err)
	}

	var reasons []string
	if len(successes) > 0 {
		if !seenIP(successes, in.IP) {
			reasons = append(reasons, ReasonNewIP)
		}
		if !seenDevice(successes, device) {
			reasons = append(reasons, ReasonNewDevice)
		}
	}
	if failures >= int64(d.config.RecentFailureThreshold) {
		reasons = append(reasons, ReasonRecentFailures)
	}
	if d.unusualHour(successes, in.Now) {
		reasons = append(reasons, ReasonUnusualHour)
	}

	return Result{
		Suspicious: len(reasons) > 0,
		Reasons:    reasons,
		Risk:       riskFor(len(reasons)),
		Action:     actionFor(reasons),
		DeviceType: device,
	}
}

func (d *Detector) unusualHour(successes []audit.Event, now time.Time) bool {
	if len(successes) < d.config.UnusualHourMinLogins {
		return false
	}
	var buckets [24]int
	for _, ev := range successes {
		buckets[ev.Timestamp.In(d.config.Location).Hour()]++
	}
	avg := float64(len(successes)) / 24
	return buckets[now.In(d.config.Location).Hour()] == 0 && avg >= d.config.UnusualHourMinAverage
}

func seenIP(events []audit.Event, ip string) bool {
	for _, ev := range events {
		if ev.IP == ip {
			return true
		}
	}
	return false
}

func seenDevice(events []audit.Event, device DeviceType) bool {
	for _, ev := range events {
		if ClassifyDevice(ev.UserAgent) == device {
			return true
		}
	}
	return false
}

func riskFor(n int) Risk {
	switch {
	case n >= 3:
		return RiskHigh
	case n == 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

func actionFor(reasons []string) Action {
	switch riskFor(len(reasons)) {
	case RiskHigh:
		return ActionAlert
	case RiskMedium:
		return ActionWarn
	}
	if len(reasons) == 1 && reasons[0] == ReasonNewIP {
		return ActionWarn
	}
	return ActionAllow
}

func degraded(device DeviceType, err error) Result {
	return Result{
		Risk:       RiskLow,
		Action:     ActionAllow,
		DeviceType: device,
		Degraded:   true,
		Err:        err,
	}
}
