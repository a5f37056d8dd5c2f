// Package detector scores a successful login against the account's audit
// history.
//
// Heuristics, each contributing one reason string:
//
//   - "new IP": prior successful logins exist and none came from this IP.
//   - "new device type": prior successful logins exist and none came from
//     this device class (desktop, tablet, mobile).
//   - "recent failures": at least RecentFailureThreshold failed logins in
//     the last RecentFailureWindow.
//   - "unusual hour": at least UnusualHourMinLogins prior successes, none
//     of them in the current hour of day, while the average per hour is at
//     least UnusualHourMinAverage.
//
// The detector never blocks a login. Any history read failure yields a
// degraded, non-suspicious result.
package detector
