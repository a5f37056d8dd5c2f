// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows.
//
// # Design
//
// Password reset records are Redis hashes keyed by the SHA-256 of the opaque
// token (aprt:<digest>) with a per-account index set (apra:<accountID>).
// Issue and Consume each run as one Lua script: issuing deletes every token
// the account still holds, and consuming flips used from 0 to 1 only while
// the record is unexpired, then deletes sibling tokens. The flip is the
// single serialization point for concurrent redemptions.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// records. It does NOT generate tokens, check password policy, or make
// authentication decisions; those belong to the root package.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Persist or log plaintext tokens.
package stores
