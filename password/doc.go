// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) still verify; [Hasher.NeedsUpgrade]
// reports true for them and for Argon2id hashes produced with weaker
// parameters, so the caller can re-hash on the next successful login.
//
// [Hasher.VerifyDummy] runs a full verification against a hash of a random
// secret. Callers use it when the account does not exist so both paths cost
// the same.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (strength,
// reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords: callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
