// Package postgres provides PostgreSQL implementations of the authcore
// account, lockout and password-history stores, together with the embedded
// schema migrations they require.
//
// Typical wiring:
//
//	m, _ := postgres.NewMigrator(url)
//	_ = m.Up()
//	s, _ := postgres.Open(ctx, url, cfg)
//	engine, _ := s.Configure(authcore.New().WithConfig(cfg).WithRedis(rdb)).Build()
//
// Lockout counters live in their own table keyed by email, so failures
// against unknown addresses are counted the same way as real ones.
package postgres
