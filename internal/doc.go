// Package internal contains helper utilities that are intentionally private to authcore,
// including secure random token generation.
//
// # Sub-packages
//
//   - audit: typed audit event store and async sink dispatch
//   - detector: suspicious login heuristics over audit history
//   - history: password reuse enforcement
//   - limiters: per-email lockout counter
//   - logging: slog construction with secret redaction
//   - rate: per-client sliding-window login throttle
//   - stores: password reset token records
//   - validate: credential syntax, password strength, text sanitizing
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
