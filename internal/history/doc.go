// Package history enforces password reuse limits.
//
// Each account keeps a newest-first list of previous password hashes in
// Redis (key prefix aph:). Only the most recent Depth entries are consulted;
// the list is trimmed to Retention entries on every append.
//
// # What this package must NOT do
//
//   - Store or log plaintext passwords.
//   - Decide password strength; that is internal/validate.
package history
