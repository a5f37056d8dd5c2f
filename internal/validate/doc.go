// Package validate checks credential syntax, password strength and free text
// before anything reaches a store.
//
// Syntax rules are go-playground/validator tags; free text goes through
// bluemonday's strict policy. Every check reports per-field reasons so the
// caller can map them to a single user-facing message.
//
// # What this package must NOT do
//
//   - Touch a store or perform I/O.
//   - Echo password values back in errors.
package validate
