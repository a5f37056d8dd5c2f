// Package rate implements the per-client sliding-window login throttle.
//
// # Window semantics
//
// One Redis hash per client identifier holds attempts, last attempt time and
// the block deadline (all unix milliseconds). Both Check and Record run as a
// single Lua script, so concurrent requests for the same identifier never
// interleave a read-modify-write. Check charges an allowed attempt as it
// decides; Record only settles it. Keys are "arl:" followed by the hex SHA-256
// of salt, IP and user agent.
//
// # What this package must NOT do
//
//   - Know about accounts, emails or passwords.
//   - Keep any counter in process memory.
//   - Be imported outside the authcore module.
package rate
