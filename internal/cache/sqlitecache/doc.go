// Package sqlitecache provides a SQLite-backed cache.Cache.
//
// The ledger outgrows memory; this backend keeps it on disk and survives
// restarts, so a later sync resumes from the stored freshness cursor.
//
// # Guarantees
//
//   - Replace-by-identity: hash is the PRIMARY KEY and writes use
//     INSERT ... ON CONFLICT(hash) DO UPDATE
//   - Atomic batches: each WriteRecords call is one transaction
//   - Snapshot reads: projections are single statements; chunked IN-list reads
//     run inside one read transaction
//   - Deterministic output: rows are returned ORDER BY height, time, hash
//     (the cache contract imposes no order; this only makes output stable)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Each row also stores model.Fingerprint of the record, which lets an upsert
// skip rewriting rows whose content did not change.
package sqlitecache
