package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/detector"
	"github.com/MrEthical07/authcore/internal/history"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/validate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// auditLog is the typed, queryable event store the engine writes to and the
// detector reads from.
type auditLog interface {
	Append(ctx context.Context, event audit.Event) (audit.Event, error)
	Query(ctx context.Context, q audit.Query) ([]audit.Event, error)
	Count(ctx context.Context, accountID string, t audit.Type, since time.Time) (int64, error)
}

// Engine is the authentication security core. Build one with [New]; an
// Engine is safe for concurrent use and holds no per-request state.
type Engine struct {
	config       Config
	accounts     AccountStore
	rateLimiter  *rate.Limiter
	lockout      LockoutStore
	history      *history.Enforcer
	resetStore   *stores.PasswordResetStore
	resetLimiter *limiters.PasswordResetLimiter
	auditStore   auditLog
	audit        *audit.Dispatcher
	detector     *detector.Detector
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	logger       *slog.Logger
	clock        func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close drains the audit dispatcher. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events the dispatcher dropped because
// its buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// A nil engine or disabled metrics yield an empty snapshot.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Engine) ready() bool {
	return e != nil && e.accounts != nil && e.rateLimiter != nil && e.lockout != nil &&
		e.passwordHash != nil && e.jwtManager != nil && e.auditStore != nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// The checks run in a fixed order: client rate limit, input validation,
// account lockout, then password verification. Malformed input is still
// charged to the client's rate limit. Store failures in any of these controls
// deny the login with an error wrapping [ErrStoreUnavailable]. Failures of the
// audit log or the suspicious activity detector never affect the outcome.
//
// An unknown email and a wrong password both return [ErrInvalidCredentials]
// after comparable work. Throttled attempts return a [*ThrottleError] wrapping
// [ErrRateLimited] or [ErrAccountLocked]. Use [LoginErrorMessage] to render
// any failure.
func (e *Engine) Authenticate(ctx context.Context, email, pass string, client ClientContext) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	now := e.now()
	id := rate.Identifier(e.config.RateLimit.IdentifierSalt, client.IP, client.UserAgent)

	decision, err := e.rateLimiter.Check(ctx, id, now)
	if err != nil {
		return nil, storeErr(err)
	}
	if !decision.Allowed {
		e.metricInc(MetricLoginRateLimited)
		e.recordAudit(ctx, audit.Event{
			Type:      audit.TypeLoginRateLimited,
			Severity:  audit.SeverityWarning,
			Email:     auditEmail(email),
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Timestamp: now,
		})
		return nil, newThrottleError(ErrRateLimited, now, decision.BlockedUntil)
	}

	creds, err := validate.Login(email, pass)
	if err != nil {
		e.metricInc(MetricLoginValidationFailure)
		if rerr := e.rateLimiter.Record(ctx, id, false, now); rerr != nil {
			return nil, storeErr(rerr)
		}
		return nil, err
	}

	lockedUntil, err := e.lockout.CheckLockout(ctx, creds.Email, now)
	if err != nil {
		return nil, storeErr(err)
	}
	if !lockedUntil.IsZero() {
		return nil, e.loginLocked(ctx, id, creds.Email, client, now, lockedUntil)
	}

	// The failure is charged before the hash comparison so concurrent
	// attempts cannot all slip under the threshold; success clears it.
	lockedUntil, justLocked, err := e.lockout.RecordFailure(ctx, creds.Email, now)
	if err != nil {
		return nil, storeErr(err)
	}
	if !lockedUntil.IsZero() && !justLocked {
		return nil, e.loginLocked(ctx, id, creds.Email, client, now, lockedUntil)
	}

	account, found, err := e.lookupAccount(ctx, creds.Email)
	if err != nil {
		return nil, err
	}

	if !found {
		e.passwordHash.VerifyDummy(creds.Password)
		return nil, e.loginFailed(ctx, id, creds.Email, "", client, now, lockedUntil, justLocked)
	}

	ok, err := e.passwordHash.Verify(creds.Password, account.PasswordHash)
	if err != nil {
		e.log().WarnContext(ctx, "stored password hash unreadable", "account_id", account.ID, "error", err)
		ok = false
	}
	if !ok {
		return nil, e.loginFailed(ctx, id, creds.Email, account.ID, client, now, lockedUntil, justLocked)
	}

	return e.loginSucceeded(ctx, id, creds, account, client, now)
}

func (e *Engine) lookupAccount(ctx context.Context, email string) (Account, bool, error) {
	account, err := e.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return account, true, nil
	case errors.Is(err, ErrAccountNotFound):
		return Account{}, false, nil
	default:
		return Account{}, false, storeErr(err)
	}
}

func (e *Engine) loginLocked(ctx context.Context, id, email string, client ClientContext, now, lockedUntil time.Time) error {
	if err := e.rateLimiter.Record(ctx, id, false, now); err != nil {
		return storeErr(err)
	}
	return e.lockedOut(ctx, email, "", client, now, lockedUntil)
}

// lockedOut reports an attempt refused by an active account lock.
func (e *Engine) lockedOut(ctx context.Context, email, accountID string, client ClientContext, now, lockedUntil time.Time) error {
	e.metricInc(MetricLoginLocked)
	e.recordAudit(ctx, audit.Event{
		Type:      audit.TypeLoginLocked,
		Severity:  audit.SeverityWarning,
		AccountID: accountID,
		Email:     email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Metadata:  map[string]string{"locked_until": lockedUntil.UTC().Format(time.RFC3339)},
		Timestamp: now,
	})
	return newThrottleError(ErrAccountLocked, now, lockedUntil)
}

func (e *Engine) loginFailed(ctx context.Context, id, email, accountID string, client ClientContext, now, lockedUntil time.Time, justLocked bool) error {
	if err := e.rateLimiter.Record(ctx, id, false, now); err != nil {
		return storeErr(err)
	}
	e.wrongPassword(ctx, email, accountID, client, nil, now, lockedUntil, justLocked)
	return ErrInvalidCredentials
}

// wrongPassword records a password mismatch whose failure was already
// charged to the lockout guard.
func (e *Engine) wrongPassword(ctx context.Context, email, accountID string, client ClientContext, meta map[string]string, now, lockedUntil time.Time, justLocked bool) {
	e.metricInc(MetricLoginFailure)
	e.recordAudit(ctx, audit.Event{
		Type:      audit.TypeLoginFailed,
		Severity:  audit.SeverityInfo,
		AccountID: accountID,
		Email:     email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Metadata:  meta,
		Timestamp: now,
	})

	if justLocked {
		e.metricInc(MetricAccountLocked)
		e.recordAudit(ctx, audit.Event{
			Type:      audit.TypeAccountLocked,
			Severity:  audit.SeverityCritical,
			AccountID: accountID,
			Email:     email,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Metadata:  map[string]string{"locked_until": lockedUntil.UTC().Format(time.RFC3339)},
			Timestamp: now,
		})
	}
}

func (e *Engine) loginSucceeded(ctx context.Context, id string, creds validate.Credentials, account Account, client ClientContext, now time.Time) (*LoginResult, error) {
	if err := e.rateLimiter.Record(ctx, id, true, now); err != nil {
		return nil, storeErr(err)
	}
	if err := e.lockout.Reset(ctx, creds.Email); err != nil {
		return nil, storeErr(err)
	}

	token, _, err := e.jwtManager.Issue(jwt.Identity{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      string(account.Role),
	}, now)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionIssued)

	if err := e.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		e.log().WarnContext(ctx, "record last login failed", "account_id", account.ID, "error", err)
	}
	e.upgradeHash(ctx, account, creds.Password)

	risk := e.assessLogin(ctx, account, client, now)

	e.metricInc(MetricLoginSuccess)
	e.recordAudit(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		Severity:  audit.SeverityInfo,
		AccountID: account.ID,
		Email:     account.Email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Metadata:  map[string]string{"device_type": risk.DeviceType},
		Timestamp: now,
	})

	return &LoginResult{
		Session: SessionToken{
			Token:     token.Value,
			IssuedAt:  token.IssuedAt,
			ExpiresAt: token.ExpiresAt,
		},
		AccountID:    account.ID,
		Email:        account.Email,
		Name:         account.Name,
		Role:         account.Role,
		Risk:         risk,
		Notification: loginNotification(account, client, risk, now),
	}, nil
}

// upgradeHash re-hashes a legacy or weaker stored hash. It is best-effort.
func (e *Engine) upgradeHash(ctx context.Context, account Account, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsUpgrade(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(plaintext)
	if err == nil {
		err = e.accounts.UpdatePasswordHash(ctx, account.ID, hash)
	}
	if err != nil {
		e.log().WarnContext(ctx, "password hash upgrade failed", "account_id", account.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordHashUpgraded)
}

// auditEmail keeps the email on rate-limited events only when it is well
// formed.
func auditEmail(raw string) string {
	email, err := validate.Email(raw)
	if err != nil {
		return ""
	}
	return email
}
