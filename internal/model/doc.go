// Package model defines the data synchronized from the cryptoverse API.
//
// Two record types cross the wire:
//   - Ruleset: the singleton server configuration, including the page-size
//     limits that drive paginated reads
//   - StarLog: one link of the append-only, hash-linked ledger
//
// StarLog identity is its Hash. The model imposes no ordering; Height and Time
// are independent ordering keys and caches compute orderings per query.
//
// Values are plain structs. Clone returns a deep copy, which caches use so
// that a caller mutating a returned record cannot corrupt stored state.
package model
