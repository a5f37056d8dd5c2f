package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
)

// RefreshSession describes the refreshsession operation and its observable behavior.
//
// The token's signature is verified and its claims are re-signed unchanged
// with a new expiry of at most one RefreshInterval, capped at the original
// login plus MaxLifetime. An elapsed expiry is accepted; a session older than
// MaxLifetime fails with [ErrSessionExpired] and requires a new login. No
// store is consulted.
func (e *Engine) RefreshSession(ctx context.Context, token string) (*SessionToken, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	refreshed, _, err := e.jwtManager.Refresh(token, e.now())
	if err != nil {
		e.sessionFailed(err)
		return nil, err
	}

	e.metricInc(MetricSessionRefreshed)
	return &SessionToken{
		Token:     refreshed.Value,
		IssuedAt:  refreshed.IssuedAt,
		ExpiresAt: refreshed.ExpiresAt,
	}, nil
}

// ValidateSession verifies token and returns its session. It fails with
// [ErrSessionExpired] once the token's expiry or the maximum lifetime has
// passed.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(token, e.now())
	if err != nil {
		e.sessionFailed(err)
		return nil, err
	}
	return sessionFromClaims(claims), nil
}

func (e *Engine) sessionFailed(err error) {
	if errors.Is(err, ErrSessionExpired) {
		e.metricInc(MetricSessionExpired)
		return
	}
	e.metricInc(MetricSessionInvalid)
}

func sessionFromClaims(c *jwt.SessionClaims) *Session {
	s := &Session{
		ID:        c.ID,
		AccountID: c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		Role:      Role(c.Role),
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
