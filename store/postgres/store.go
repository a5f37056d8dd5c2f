package postgres

import (
	"context"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// Store bundles the Postgres repositories over one connection pool.
type Store struct {
	pool *pgxpool.Pool

	Accounts *AccountRepository
	Lockouts *LockoutRepository
	History  *HistoryRepository
}

// Open connects to databaseURL and builds the repositories from cfg.
func Open(ctx context.Context, databaseURL string, cfg authcore.Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return &Store{
		pool:     pool,
		Accounts: NewAccountRepository(pool),
		Lockouts: NewLockoutRepository(pool, cfg.Lockout),
		History:  NewHistoryRepository(pool, cfg.Password.HistoryRetention),
	}, nil
}

// Configure installs the repositories on b.
func (s *Store) Configure(b *authcore.Builder) *authcore.Builder {
	return b.WithAccountStore(s.Accounts).
		WithLockoutStore(s.Lockouts).
		WithHistoryStore(s.History)
}

// Close closes the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
