// Package cache defines the storage capability the synchronizer writes into
// and the reference in-memory implementation.
//
// # Contract
//
// Every backend (memory, sqlitecache, rediscache) provides:
//   - Replace-by-identity writes: a record whose Hash is already stored
//     replaces the stored record; at most one record per Hash at any time
//   - All-or-nothing batches: a WriteRecords call is visible entirely or not
//     at all; within a batch the last record for a Hash wins
//   - Snapshot-consistent reads: a read never observes a partially applied batch
//   - Independent results: reads return deep copies, never aliases of stored state
//   - No store ordering: orderings (max height, max time) are computed per query
//
// Failures are reported as errors carrying a status.Kind; status.Of maps them
// onto the two-state Success/Error signal. Operations never panic into the
// caller's control flow.
//
// # Asynchronous use
//
// Async wraps any Cache and returns a single-shot channel per call. Concurrent
// calls complete in whichever order they finish; callers must not assume FIFO.
package cache
