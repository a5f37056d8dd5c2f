// Package limiters provides domain-specific counters built on Redis.
//
// # Limiters
//
//   - [LockoutLimiter]: per-email consecutive failure counter that locks the
//     address for a fixed duration once the threshold is reached.
//   - [PasswordResetLimiter]: fixed-window cap on reset requests per email
//     and per client IP.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy
// thresholds come from Config structs supplied at construction time.
// Method signatures use standard types only so the root package can swap the
// Redis implementation for another store.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Decide what a lock means for a login; flow code in the root package does.
package limiters
