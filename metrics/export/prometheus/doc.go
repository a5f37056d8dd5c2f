// Package prometheus exposes authcore engine metrics as a Prometheus
// collector.
//
// [NewCollector] reads [authcore.Engine.MetricsSnapshot] on every scrape.
// Counters are named authcore_*_total and the login latency histogram is
// authcore_login_latency_seconds. Register the collector with your own
// registry or serve it alone through [Collector.Handler].
//
// # What this package must NOT do
//
//   - Register anything in the global default registry.
//   - Mutate engine state.
package prometheus
