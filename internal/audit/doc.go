// Package audit records security-relevant events.
//
// # Components
//
//   - [Event]: immutable record with ULID, closed [Type], [Severity],
//     account, email, client IP, user agent and metadata.
//   - [RedisStore]: the queryable log. Sorted sets scored by timestamp,
//     one global (aae:all) and one per account and type (aae:a:<id>:<type>).
//   - [Sink]: interface for external consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay to a Sink with bounded retries and
//     drop-if-full / block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns event storage, buffering and sink delivery. It does NOT
// decide which events to emit; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Update or delete stored events.
//   - Filter or suppress events based on business logic.
//   - Import authcore or any sibling internal package.
package audit
