// Package journal is an append-only SQLite log of test runs and status
// messages.
//
// A Recorder subscribes to a cpustore.Store as an observer and status sink
// and writes one row per run: opened when the run is first published,
// closed when it completes or faults. Rows are ordered by the publisher's
// seq, never by wall time, so replaying the same session yields the same
// journal.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers (hackrun history) during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema version tracked in PRAGMA user_version
package journal
