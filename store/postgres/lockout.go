package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// LockoutRepository implements authcore.LockoutStore on the login_lockouts
// table. Rows are keyed by email so unknown addresses are tracked too.
type LockoutRepository struct {
	db     DB
	config authcore.LockoutConfig
}

// NewLockoutRepository creates a new LockoutRepository.
func NewLockoutRepository(db DB, cfg authcore.LockoutConfig) *LockoutRepository {
	return &LockoutRepository{db: db, config: cfg}
}

var _ authcore.LockoutStore = (*LockoutRepository)(nil)

// CheckLockout returns the active lock deadline for email, or the zero time.
func (r *LockoutRepository) CheckLockout(ctx context.Context, email string, now time.Time) (time.Time, error) {
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx, `SELECT locked_until FROM login_lockouts WHERE email = $1`, email).Scan(&lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, oops.Code("LOCKOUT_CHECK_FAILED").
			With("operation", "read lockout").
			Wrap(err)
	}
	if lockedUntil == nil || !lockedUntil.After(now) {
		return time.Time{}, nil
	}
	return *lockedUntil, nil
}

// RecordFailure counts one failure for email under a row lock. Reaching the
// threshold clears the counter and sets the lock. A failure recorded while
// locked leaves the deadline unchanged.
func (r *LockoutRepository) RecordFailure(ctx context.Context, email string, now time.Time) (lockedUntil time.Time, justLocked bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return time.Time{}, false, oops.Code("LOCKOUT_RECORD_FAILED").With("operation", "begin").Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO login_lockouts (email, failures, locked_until, updated_at)
		VALUES ($1, 0, NULL, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, now); err != nil {
		return time.Time{}, false, oops.Code("LOCKOUT_RECORD_FAILED").With("operation", "ensure row").Wrap(err)
	}

	var (
		failures  int
		current   *time.Time
		updatedAt time.Time
	)
	if err := tx.QueryRow(ctx, `
		SELECT failures, locked_until, updated_at
		FROM login_lockouts
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&failures, &current, &updatedAt); err != nil {
		return time.Time{}, false, oops.Code("LOCKOUT_RECORD_FAILED").With("operation", "lock row").Wrap(err)
	}

	if current != nil && current.After(now) {
		return *current, false, nil
	}
	if !updatedAt.Add(r.config.CounterTTL).After(now) {
		failures = 0
	}

	failures++
	var until *time.Time
	if failures >= r.config.Threshold {
		t := now.Add(r.config.Duration)
		until = &t
		failures = 0
		justLocked = true
	}

	if _, err := tx.Exec(ctx, `
		UPDATE login_lockouts
		SET failures = $2, locked_until = $3, updated_at = $4
		WHERE email = $1
	`, email, failures, until, now); err != nil {
		return time.Time{}, false, oops.Code("LOCKOUT_RECORD_FAILED").With("operation", "update row").Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, false, oops.Code("LOCKOUT_RECORD_FAILED").With("operation", "commit").Wrap(err)
	}

	if until != nil {
		return *until, true, nil
	}
	return time.Time{}, false, nil
}

// Reset clears the counter and any lock for email.
func (r *LockoutRepository) Reset(ctx context.Context, email string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM login_lockouts WHERE email = $1`, email); err != nil {
		return oops.Code("LOCKOUT_RESET_FAILED").With("operation", "delete lockout").Wrap(err)
	}
	return nil
}
