package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

const accountColumns = `
	a.id, a.email, a.password_hash, a.name, a.role, a.created_by,
	a.created_at, a.last_login_at,
	COALESCE(l.failures, 0), l.locked_until`

// AccountRepository implements authcore.AccountStore. Lockout columns are
// read from login_lockouts so Account.FailedLoginAttempts and
// Account.LockedUntil reflect the Postgres lockout store.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ authcore.AccountStore = (*AccountRepository)(nil)

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (authcore.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		LEFT JOIN login_lockouts l ON l.email = a.email
		WHERE a.email = $1
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(authcore.ErrAccountNotFound)
	}
	if err != nil {
		return authcore.Account{}, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (authcore.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		LEFT JOIN login_lockouts l ON l.email = a.email
		WHERE a.id = $1
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(authcore.ErrAccountNotFound)
	}
	if err != nil {
		return authcore.Account{}, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

// Create stores a new account. A duplicate email fails with
// authcore.ErrAccountExists.
func (r *AccountRepository) Create(ctx context.Context, account authcore.Account) error {
	var createdBy *string
	if account.CreatedBy != "" {
		createdBy = &account.CreatedBy
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, name, role, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		string(account.Role),
		createdBy,
		account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_EXISTS").
			With("email", account.Email).
			Wrap(authcore.ErrAccountExists)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(authcore.ErrAccountNotFound)
	}
	return nil
}

// RecordLogin sets last_login_at.
func (r *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "record login").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(authcore.ErrAccountNotFound)
	}
	return nil
}

// Delete removes the account. Password history rows cascade.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(authcore.ErrAccountNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (authcore.Account, error) {
	var (
		a           authcore.Account
		role        string
		createdBy   *string
		lastLoginAt *time.Time
		lockedUntil *time.Time
	)
	if err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Name,
		&role,
		&createdBy,
		&a.CreatedAt,
		&lastLoginAt,
		&a.FailedLoginAttempts,
		&lockedUntil,
	); err != nil {
		return authcore.Account{}, err
	}

	a.Role = authcore.Role(role)
	if createdBy != nil {
		a.CreatedBy = *createdBy
	}
	if lastLoginAt != nil {
		a.LastLoginAt = *lastLoginAt
	}
	if lockedUntil != nil {
		a.LockedUntil = *lockedUntil
	}
	return a, nil
}
