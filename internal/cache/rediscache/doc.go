// Package rediscache provides a Redis-backed cache.Cache that several
// processes can share.
//
// Layout, under a configurable prefix (default "cryptoverse:"):
//
//	ruleset   string  CBOR-encoded model.Ruleset
//	starlogs  hash    star log hash -> CBOR-encoded model.StarLog
//	heights   zset    star log hash scored by height
//	times     zset    star log hash scored by time
//
// Batches are written in one MULTI/EXEC. Projection reads run as Lua scripts
// so the index and the records are read from one state.
//
// Scores are float64, so heights and times are exact up to 2^53.
package rediscache
