package rediscache

import "strings"

// DefaultPrefix namespaces every key this backend touches.
const DefaultPrefix = "cryptoverse:"

// Key suffixes
const (
	SuffixRuleset = "ruleset"  // CBOR ruleset
	SuffixRecords = "starlogs" // hash: star log hash -> CBOR star log
	SuffixHeights = "heights"  // zset: star log hash scored by height
	SuffixTimes   = "times"    // zset: star log hash scored by time
)

// normalizePrefix appends the ':' separator if missing. An empty prefix
// selects DefaultPrefix.
func normalizePrefix(p string) string {
	if p == "" {
		return DefaultPrefix
	}
	if !strings.HasSuffix(p, ":") {
		p += ":"
	}
	return p
}

// KeyRuleset returns the key holding the current ruleset.
func (s *Store) KeyRuleset() string {
	return s.prefix + SuffixRuleset
}

// KeyRecords returns the hash storing star logs by identity.
func (s *Store) KeyRecords() string {
	return s.prefix + SuffixRecords
}

// KeyHeights returns the sorted set indexing star logs by height.
func (s *Store) KeyHeights() string {
	return s.prefix + SuffixHeights
}

// KeyTimes returns the sorted set indexing star logs by time.
func (s *Store) KeyTimes() string {
	return s.prefix + SuffixTimes
}
