// Package poller runs background tasks on a fixed interval.
//
// A Poller drives one Task:
//   - runs it immediately on Start, then on every tick
//   - bounds each run with a timeout
//   - logs and counts failures without stopping the loop
//
// SnapshotTask records the account's balance and portfolio value once per
// interval bucket. The ingestion syncer is driven by its own Poller.
package poller
