package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/validate"
)

// ChangePassword describes the changepassword operation and its observable behavior.
//
// The caller must present the current password. Each check of it is charged
// to the account's lockout counter like a login attempt: a mismatch returns
// [ErrInvalidCredentials] and a locked account returns a [*ThrottleError]
// wrapping [ErrAccountLocked]. The new password must meet the strength policy
// and differ from the current and recent passwords. Outstanding reset tokens
// of the account are invalidated on success.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if !e.ready() || e.history == nil {
		return ErrEngineNotReady
	}
	now := e.now()

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return storeErr(err)
	}

	if err := e.verifyCurrentPassword(ctx, account, currentPassword, now); err != nil {
		return err
	}

	newHash, err := e.prepareNewPassword(ctx, account, newPassword)
	if err != nil {
		return err
	}

	if err := e.commitPassword(ctx, account, newHash, "change", now); err != nil {
		return err
	}
	if e.resetStore != nil {
		if err := e.resetStore.InvalidateAll(ctx, account.ID); err != nil {
			e.log().WarnContext(ctx, "reset token invalidation failed", "account_id", account.ID, "error", err)
		}
	}
	return nil
}

// verifyCurrentPassword checks plaintext against the stored hash behind the
// same lockout reservation Authenticate uses.
func (e *Engine) verifyCurrentPassword(ctx context.Context, account Account, plaintext string, now time.Time) error {
	client := ClientContextFrom(ctx)

	lockedUntil, err := e.lockout.CheckLockout(ctx, account.Email, now)
	if err != nil {
		return storeErr(err)
	}
	if !lockedUntil.IsZero() {
		return e.lockedOut(ctx, account.Email, account.ID, client, now, lockedUntil)
	}

	lockedUntil, justLocked, err := e.lockout.RecordFailure(ctx, account.Email, now)
	if err != nil {
		return storeErr(err)
	}
	if !lockedUntil.IsZero() && !justLocked {
		return e.lockedOut(ctx, account.Email, account.ID, client, now, lockedUntil)
	}

	ok, err := e.passwordHash.Verify(plaintext, account.PasswordHash)
	if err != nil || !ok {
		e.wrongPassword(ctx, account.Email, account.ID, client,
			map[string]string{"method": "change"}, now, lockedUntil, justLocked)
		return ErrInvalidCredentials
	}

	if err := e.lockout.Reset(ctx, account.Email); err != nil {
		return storeErr(err)
	}
	return nil
}

// prepareNewPassword applies the strength and reuse policy and returns the
// new hash.
func (e *Engine) prepareNewPassword(ctx context.Context, account Account, newPassword string) (string, error) {
	if err := validate.PasswordStrength(newPassword); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	}

	if same, err := e.passwordHash.Verify(newPassword, account.PasswordHash); err == nil && same {
		e.metricInc(MetricPasswordReuseRejected)
		return "", ErrPasswordReused
	}

	reused, err := e.history.WasRecentlyUsed(ctx, account.ID, newPassword)
	if err != nil {
		return "", storeErr(err)
	}
	if reused {
		e.metricInc(MetricPasswordReuseRejected)
		return "", ErrPasswordReused
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	}
	return hash, nil
}

// commitPassword stores newHash, appends the previous hash to history and
// records the change.
func (e *Engine) commitPassword(ctx context.Context, account Account, newHash, method string, now time.Time) error {
	if err := e.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		return storeErr(err)
	}
	if err := e.history.Record(ctx, account.ID, account.PasswordHash, now); err != nil {
		e.log().ErrorContext(ctx, "password history append failed", "account_id", account.ID, "error", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.recordAudit(ctx, audit.Event{
		Type:      audit.TypePasswordChanged,
		Severity:  audit.SeverityWarning,
		AccountID: account.ID,
		Email:     account.Email,
		Metadata:  map[string]string{"method": method},
		Timestamp: now,
	})
	return nil
}
