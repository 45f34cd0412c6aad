package cache

import (
	"context"
	"errors"

	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

// ErrNoRuleset is returned (wrapped, kind not_found) by ReadRuleset when no
// ruleset has been written yet.
var ErrNoRuleset = errors.New("no ruleset cached")

// Cache stores the ruleset and star logs pulled from the API.
//
// Backend selection is a constructor-time decision: callers receive a Cache
// and never depend on the concrete type.
type Cache interface {
	// WriteRuleset unconditionally replaces the stored ruleset.
	WriteRuleset(ctx context.Context, r model.Ruleset) error

	// WriteRecords stores logs, replacing any stored record with the same Hash.
	// The batch is applied atomically.
	WriteRecords(ctx context.Context, logs ...model.StarLog) error

	// ReadRuleset returns the stored ruleset, or ErrNoRuleset (kind not_found).
	ReadRuleset(ctx context.Context) (model.Ruleset, error)

	// ReadRecords returns the stored records whose Hash is in hashes.
	// No hashes means all records. Missing hashes are simply absent.
	ReadRecords(ctx context.Context, hashes ...string) ([]model.StarLog, error)

	// ReadRecordsAtHeight returns the stored records whose Height is in heights.
	// No heights means all records.
	ReadRecordsAtHeight(ctx context.Context, heights ...int64) ([]model.StarLog, error)

	// ReadRecordsHighest returns every record sharing the maximum Height.
	// An empty store yields an empty result, not an error.
	ReadRecordsHighest(ctx context.Context) ([]model.StarLog, error)

	// ReadRecordsLatest returns every record sharing the maximum Time.
	// An empty store has a baseline maximum of 0 and yields an empty result.
	ReadRecordsLatest(ctx context.Context) ([]model.StarLog, error)
}

// CheckContext returns a kind canceled error for op if ctx is done.
// Backends call it before touching storage.
func CheckContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return status.New(status.KindCanceled, op, err)
	}
	return nil
}

// StorageError wraps a backend failure for op. Failures caused by ctx being
// done are reported as kind canceled, everything else as kind storage.
func StorageError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return status.New(status.KindCanceled, op, err)
	}
	return status.New(status.KindStorage, op, err)
}

// NoRuleset returns the not_found error for a read of a never-written ruleset.
func NoRuleset() error {
	return status.New(status.KindNotFound, "read ruleset", ErrNoRuleset)
}

// Dedupe collapses a batch to one record per Hash, keeping the last occurrence
// and the order of those last occurrences.
func Dedupe(logs []model.StarLog) []model.StarLog {
	last := make(map[string]int, len(logs))
	for i, l := range logs {
		last[l.Hash] = i
	}
	if len(last) == len(logs) {
		return logs
	}
	out := make([]model.StarLog, 0, len(last))
	for i, l := range logs {
		if last[l.Hash] == i {
			out = append(out, l)
		}
	}
	return out
}
