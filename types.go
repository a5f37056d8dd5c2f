package authcore

import (
	"context"
	"time"
)

// Account is the identity record owned by the [AccountStore].
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	// FailedLoginAttempts and LockedUntil mirror lockout state for stores that
	// keep it on the account row. The engine reads lockout state through
	// [LockoutStore] only.
	FailedLoginAttempts int
	LockedUntil         time.Time
	LastLoginAt         time.Time
	CreatedBy           string
	CreatedAt           time.Time
}

// AccountStore is the persistence contract for accounts. Lookups of a missing
// account return an error matching [ErrAccountNotFound]; Create returns one
// matching [ErrAccountExists] for a duplicate email. Emails are passed already
// normalized.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, account Account) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// LockoutStore holds account-scoped failure counters. RecordFailure must be
// atomic: concurrent failures are all counted and exactly one of them reports
// justLocked. A failure recorded while locked returns the existing deadline.
type LockoutStore interface {
	CheckLockout(ctx context.Context, email string, now time.Time) (lockedUntil time.Time, err error)
	RecordFailure(ctx context.Context, email string, now time.Time) (lockedUntil time.Time, justLocked bool, err error)
	Reset(ctx context.Context, email string) error
}

// HistoryStore keeps previously used password hashes, newest first.
type HistoryStore interface {
	RecentHashes(ctx context.Context, accountID string, n int) ([]string, error)
	AppendHash(ctx context.Context, accountID, hash string, at time.Time) error
}

// ClientContext identifies the client presenting credentials. Raw values are
// hashed before they reach the rate limiter.
type ClientContext struct {
	IP        string
	UserAgent string
}

// Session is the verified content of a session token.
type Session struct {
	ID        string
	AccountID string
	Email     string
	Name      string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionToken is a signed session ready to hand to the client.
type SessionToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RiskAssessment is the suspicious-activity verdict attached to a login.
type RiskAssessment struct {
	Suspicious bool
	Reasons    []string
	// Risk is "low", "medium" or "high".
	Risk string
	// Action is "allow", "warn" or "alert". The login is never blocked.
	Action     string
	DeviceType string
	// Degraded means history was unavailable and the verdict defaulted to allow.
	Degraded bool
}

// LoginResult is returned by a successful [Engine.Authenticate].
type LoginResult struct {
	Session   SessionToken
	AccountID string
	Email     string
	Name      string
	Role      Role
	Risk      RiskAssessment
	// Notification is set when the login should be reported to the account
	// holder.
	Notification *Notification
}

// TemplateKind selects the email template for a [Notification].
type TemplateKind string

const (
	// TemplatePasswordReset is an exported constant or variable used by the authentication engine.
	TemplatePasswordReset TemplateKind = "password_reset"
	// TemplateNewLogin is an exported constant or variable used by the authentication engine.
	TemplateNewLogin TemplateKind = "new_login"
	// TemplateSuspiciousActivity is an exported constant or variable used by the authentication engine.
	TemplateSuspiciousActivity TemplateKind = "suspicious_activity"
	// TemplatePasswordChanged is an exported constant or variable used by the authentication engine.
	TemplatePasswordChanged TemplateKind = "password_changed"
)

// Notification is an email the application should deliver. The engine only
// produces notifications; delivery belongs to a [Mailer].
type Notification struct {
	To   string
	Kind TemplateKind
	Data map[string]string
}

// Mailer delivers notifications. Implementations live outside this module.
type Mailer interface {
	Send(ctx context.Context, to string, kind TemplateKind, data map[string]string) error
}

// Send delivers n through m. A nil notification is a no-op.
func (n *Notification) Send(ctx context.Context, m Mailer) error {
	if n == nil || m == nil {
		return nil
	}
	return m.Send(ctx, n.To, n.Kind, n.Data)
}

// PasswordResetRequest is returned by [Engine.RequestPasswordReset]. It is
// never nil and never an error; Notification is nil when there is nothing to
// deliver.
type PasswordResetRequest struct {
	Notification *Notification
}

// CreateAccountRequest describes a new account. CreatedBy is the creator's
// account ID; empty means bootstrap provisioning.
type CreateAccountRequest struct {
	Email     string
	Password  string
	Name      string
	Role      Role
	CreatedBy string
}
