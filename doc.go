// Package authcore is the authentication security core: credential
// verification, per-client rate limiting, account lockout, suspicious login
// detection, password reset tokens, password reuse history and signed
// session tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Counters and tokens live in Redis
// and are updated with atomic scripts; the engine keeps no per-request state
// in memory.
//
// # Login order
//
// [Engine.Authenticate] checks, in order: the client rate limit (keyed by a
// hash of IP and user agent), input shape, the account lockout, and finally
// the password. Every failure is reported to the login surface with the same
// message ([LoginErrorMessage]).
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([AccountStore], [LockoutStore],
// [HistoryStore], [Mailer]) and value types. Component logic lives under
// internal/ and is never exported. Storage adapters live in store/.
//
// # What this package must NOT do
//
//   - Deliver email. The engine returns [Notification] values; the
//     application sends them.
//   - Let an audit or detector failure change the outcome of a login.
//   - Hold rate limit or lockout counters in process memory.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Sessions
//
// Sessions are self-validating signed tokens. [Engine.ValidateSession] needs
// no store round-trip, so a session cannot be revoked before it expires.
package authcore
