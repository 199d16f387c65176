// Package store keeps a SQLite ledger of comparison runs.
//
// The ledger is append-only:
//   - runs: one row per compare invocation, finished with a status
//   - comparisons: one row per artifact pair, with the report digest
//   - findings: the ordered findings of each comparison
//
// Rows within a run are ordered by seq, never by timestamp, so listing a run
// reproduces the order its reports were written to the results file.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
