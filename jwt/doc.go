// Package jwt issues and verifies self-contained session tokens.
//
// A session token carries the account id (sub), email, display name and role.
// iat is the original authentication time and never changes; exp is the next
// refresh deadline, capped at iat+MaxLifetime. Refresh re-signs the same
// claims with a later exp and a fresh jti, so a session can be kept alive by
// activity but never beyond MaxLifetime.
package jwt
