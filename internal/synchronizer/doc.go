// Package synchronizer converges a local cache.Cache to the remote star log
// ledger.
//
// # Lifecycle
//
//	Uninitialized -> Initializing -> Syncing -> Idle
//	                      |             |
//	                      +--> Failed <-+
//
// Initialize fetches the ruleset, validates and caches it, then runs one
// Synchronize pass. On success the instance is marked initialized and the
// maintenance poller starts.
//
// # Synchronize pass
//
// A pass reads the freshness cursor (the maximum cached time, 0 when empty)
// and the page size from the cached ruleset, then fetches pages of records
// newer than the cursor. The since_time floor stays fixed for the whole pass;
// only the offset advances, by the length of each page. A page shorter than
// the page size ends the pass. A fetch failure aborts the pass.
//
// A failed page write is logged and counted in PassStats.WriteFailures, and
// the offset still advances past that page. WithAbortOnWriteError(true)
// aborts the pass instead.
//
// Passes are serialized: at most one runs at a time per Synchronizer,
// whether it comes from Initialize, a direct Synchronize call or the poller.
package synchronizer
