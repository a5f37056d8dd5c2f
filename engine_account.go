package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal/validate"
	"github.com/google/uuid"
)

// CreateAccount describes the createaccount operation and its observable behavior.
//
// The email is normalized, the password must meet the strength policy and
// the display name is sanitized. When CreatedBy is set the creator must hold
// at least [RoleAdmin] and strictly outrank the requested role; an empty
// CreatedBy provisions without that check. The returned Account carries no
// password hash.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		return Account{}, err
	}
	if err := validate.PasswordStrength(req.Password); err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	}

	role := req.Role
	if role == "" {
		role = RoleViewer
	}
	if !role.Valid() {
		return Account{}, ErrRoleInvalid
	}

	var creator *Account
	if req.CreatedBy != "" {
		c, err := e.accounts.GetByID(ctx, req.CreatedBy)
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrPermissionDenied
		}
		if err != nil {
			return Account{}, storeErr(err)
		}
		creator = &c
	}
	if !canCreate(creator, role) {
		return Account{}, ErrPermissionDenied
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         validate.SanitizeText(req.Name),
		Role:         role,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    e.now(),
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return Account{}, ErrAccountExists
		}
		return Account{}, storeErr(err)
	}

	e.metricInc(MetricAccountCreated)
	e.log().InfoContext(ctx, "account created", "account_id", account.ID, "role", string(role), "created_by", req.CreatedBy)

	account.PasswordHash = ""
	return account, nil
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// The actor must exist, must not be the target, must hold at least
// [RoleAdmin] and must strictly outrank the target. Otherwise it fails with
// [ErrPermissionDenied]. Reset tokens and lockout state of the target are
// cleared best-effort.
func (e *Engine) DeleteAccount(ctx context.Context, actorID, targetID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if actorID == "" || actorID == targetID {
		return ErrPermissionDenied
	}

	actor, err := e.accounts.GetByID(ctx, actorID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrPermissionDenied
	}
	if err != nil {
		return storeErr(err)
	}

	target, err := e.accounts.GetByID(ctx, targetID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return storeErr(err)
	}

	if !canDelete(actor, target) {
		return ErrPermissionDenied
	}

	if err := e.accounts.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return storeErr(err)
	}

	if e.resetStore != nil {
		if err := e.resetStore.InvalidateAll(ctx, target.ID); err != nil {
			e.log().WarnContext(ctx, "reset token cleanup failed", "account_id", target.ID, "error", err)
		}
	}
	if err := e.lockout.Reset(ctx, target.Email); err != nil {
		e.log().WarnContext(ctx, "lockout cleanup failed", "account_id", target.ID, "error", err)
	}

	e.metricInc(MetricAccountDeleted)
	e.log().InfoContext(ctx, "account deleted", "account_id", target.ID, "actor_id", actor.ID)
	return nil
}

// UnlockAccount clears the lockout and failure counter of email. It is the
// administrative recovery path for a locked account and is idempotent.
func (e *Engine) UnlockAccount(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	normalized, err := validate.Email(email)
	if err != nil {
		return err
	}
	if err := e.lockout.Reset(ctx, normalized); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricAccountUnlocked)
	return nil
}
