package synchronizer

import "time"

// PassStats summarizes one Synchronize pass.
type PassStats struct {
	// ID correlates the pass's log lines.
	ID string `json:"id" yaml:"id"`

	// Cursor is the fixed since_time floor the pass fetched above.
	Cursor int64 `json:"cursor" yaml:"cursor"`

	// Limit is the page size read from the cached ruleset.
	Limit int64 `json:"limit" yaml:"limit"`

	// Pages counts successful fetches, including the final short page.
	Pages int `json:"pages" yaml:"pages"`

	// Fetched counts records received across all pages.
	Fetched int `json:"fetched" yaml:"fetched"`

	// Written counts records in pages the cache accepted.
	Written int `json:"written" yaml:"written"`

	// WriteFailures counts pages the cache rejected.
	WriteFailures int `json:"write_failures" yaml:"write_failures"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// Err is the error the pass returned, nil on success.
	Err error `json:"-" yaml:"-"`
}

// OK reports whether the pass completed successfully.
func (p PassStats) OK() bool {
	return p.Err == nil
}
