// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Venue request counts, latencies and retries
//   - Sync sweep outcomes, inserted rows and integrity issues
//   - Background task runs and durations
//   - Local HTTP API request counts and latencies
//
// Metrics live on a private registry exposed by Handler, so tests and
// multiple instances never collide on the global default registry.
package metrics
