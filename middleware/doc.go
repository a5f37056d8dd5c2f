// Package middleware adapts authcore sessions to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer session token through
//     Engine.ValidateSession and stores the session in the request context.
//   - [RequireRole] enforces a minimum role on an already guarded route.
//   - [ClientInfo] records the caller's IP and user agent for login handlers.
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself.
//   - Access Redis or any account store.
package middleware
