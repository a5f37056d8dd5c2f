package authcore

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/validate"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset always returns a non-nil result and a nil error, so the
// response never reveals whether email belongs to an account. When it does,
// every earlier token of the account is invalidated, a new single-use token
// valid for PasswordReset.TokenTTL is stored, and the result carries the
// notification the application must deliver. Store failures are logged and
// leave the Notification nil.
//
// Requests are limited per normalized email, and per client IP taken from
// [ClientContextFrom], to PasswordReset.MaxRequests per RequestWindow. Over
// the limit no token is issued and the result is the same empty success an
// unknown email gets, so earlier links stay valid.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequest, error) {
	result := &PasswordResetRequest{}
	if !e.ready() || e.resetStore == nil || e.resetLimiter == nil {
		e.log().ErrorContext(ctx, "password reset requested on an engine that is not ready")
		return result, nil
	}
	e.metricInc(MetricPasswordResetRequest)

	normalized, err := validate.Email(email)
	if err != nil {
		return result, nil
	}

	if err := e.resetLimiter.CheckRequest(ctx, normalized, ClientContextFrom(ctx).IP, e.now()); err != nil {
		if errors.Is(err, limiters.ErrResetRateLimited) {
			e.metricInc(MetricPasswordResetThrottled)
		} else {
			e.log().ErrorContext(ctx, "password reset limiter unavailable", "error", err)
		}
		if err := sleepEnumerationDelay(ctx); err != nil {
			e.log().DebugContext(ctx, "password reset delay interrupted", "error", err)
		}
		return result, nil
	}

	account, found, err := e.lookupAccount(ctx, normalized)
	if err != nil {
		e.log().ErrorContext(ctx, "password reset lookup failed", "error", err)
		return result, nil
	}
	if !found {
		if err := sleepEnumerationDelay(ctx); err != nil {
			e.log().DebugContext(ctx, "password reset delay interrupted", "error", err)
		}
		return result, nil
	}

	token, err := internal.NewResetToken()
	if err != nil {
		e.log().ErrorContext(ctx, "password reset token generation failed", "error", err)
		return result, nil
	}

	now := e.now()
	ttl := e.config.PasswordReset.TokenTTL
	if err := e.resetStore.Issue(ctx, account.ID, internal.HashToken(token), now, ttl); err != nil {
		e.log().ErrorContext(ctx, "password reset token store failed", "account_id", account.ID, "error", err)
		return result, nil
	}

	data := map[string]string{
		"name":       account.Name,
		"token":      token,
		"expires_at": now.Add(ttl).UTC().Format(time.RFC3339),
	}
	if base := e.config.PasswordReset.LinkBase; base != "" {
		data["link"] = base + token
	}
	result.Notification = &Notification{
		To:   account.Email,
		Kind: TemplatePasswordReset,
		Data: data,
	}
	return result, nil
}

// VerifyPasswordReset reports whether token is currently redeemable. It does
// not consume the token.
func (e *Engine) VerifyPasswordReset(ctx context.Context, token string) error {
	if !e.ready() || e.resetStore == nil {
		return ErrEngineNotReady
	}
	_, err := e.activeResetAccount(ctx, token, e.now())
	return err
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// The token is verified, the new password is checked against the strength
// policy, the current password and the recent history, and only then is the
// token consumed. Consumption is atomic: of several concurrent redemptions of
// one token exactly one proceeds, the others fail with
// [ErrInvalidOrExpiredToken]. Redemption invalidates every other token of the
// account and clears its lockout.
//
// If the account store fails after the token was consumed, ResetPassword
// returns an error wrapping [ErrStoreUnavailable] with the password
// unchanged and the token spent; the user must request a new reset link.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() || e.resetStore == nil || e.history == nil {
		return ErrEngineNotReady
	}
	now := e.now()

	accountID, err := e.activeResetAccount(ctx, token, now)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		e.metricInc(MetricPasswordResetFailure)
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return storeErr(err)
	}

	newHash, err := e.prepareNewPassword(ctx, account, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	if _, err := e.resetStore.Consume(ctx, internal.HashToken(token), now); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return mapResetStoreError(err)
	}

	if err := e.commitPassword(ctx, account, newHash, "reset", now); err != nil {
		return err
	}
	if err := e.lockout.Reset(ctx, account.Email); err != nil {
		e.log().WarnContext(ctx, "lockout reset after password reset failed", "account_id", account.ID, "error", err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	return nil
}

// activeResetAccount returns the owner of token if it is unused and unexpired.
func (e *Engine) activeResetAccount(ctx context.Context, token string, now time.Time) (string, error) {
	if err := internal.ParseResetToken(token); err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	rec, err := e.resetStore.Get(ctx, internal.HashToken(token))
	if err != nil {
		return "", mapResetStoreError(err)
	}
	if rec.Used || !rec.ExpiresAt.After(now) {
		return "", ErrInvalidOrExpiredToken
	}
	return rec.AccountID, nil
}

func mapResetStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrResetNotFound),
		errors.Is(err, stores.ErrResetUsed),
		errors.Is(err, stores.ErrResetExpired):
		return ErrInvalidOrExpiredToken
	default:
		return storeErr(err)
	}
}

// sleepEnumerationDelay pads the unknown-account path of a reset request by
// a random 20-40ms.
func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
