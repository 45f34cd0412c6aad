// Package cachetest is the conformance suite every cache backend runs.
//
// Usage from a backend's tests:
//
//	func TestConformance(t *testing.T) {
//		cachetest.Run(t, func(t *testing.T) cache.Cache { return newTestCache(t) })
//	}
package cachetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

// Factory returns a fresh, empty cache. Cleanup is the factory's job.
type Factory func(t *testing.T) cache.Cache

// Record builds a star log with the given identity and ordering keys.
// The events payload is compact JSON so it survives backends that re-encode it.
func Record(hash string, height, time int64) model.StarLog {
	return model.StarLog{
		LogHeader:    "header-" + hash,
		Hash:         hash,
		PreviousHash: "prev-" + hash,
		Height:       height,
		Time:         time,
		CreateTime:   time - 1,
		Version:      1,
		Difficulty:   486604799,
		Nonce:        height * 31,
		EventsHash:   "events-" + hash,
		Events: []json.RawMessage{
			json.RawMessage(`{"type":"jump","fleet":"` + hash + `"}`),
		},
	}
}

// Run executes the full conformance suite against newCache.
func Run(t *testing.T, newCache Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, c cache.Cache)
	}{
		{"RulesetNotFoundBeforeWrite", testRulesetNotFound},
		{"RulesetReplacedWholesale", testRulesetReplaced},
		{"IdentityReplaceLaw", testIdentityReplace},
		{"BatchLastWriteWins", testBatchLastWins},
		{"FilterEmptyMeansAll", testFilterEmptyMeansAll},
		{"ReadRecordsSubset", testReadRecordsSubset},
		{"ReadRecordsAtHeight", testReadAtHeight},
		{"HighestTies", testHighestTies},
		{"HighestEmptyStore", testHighestEmpty},
		{"LatestEmptyStoreBaseline", testLatestEmpty},
		{"LatestTies", testLatestTies},
		{"ReplaceMovesProjections", testReplaceMovesProjections},
		{"ReadsReturnCopies", testReadsReturnCopies},
		{"WriteCopiesInput", testWriteCopiesInput},
		{"NilEventsRoundTrip", testNilEvents},
		{"EmptyWriteIsNoop", testEmptyWrite},
		{"CancelledContext", testCancelledContext},
		{"ReadsSeeWholeBatches", testReadsSeeWholeBatches},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newCache(t))
		})
	}
}

func testRulesetNotFound(t *testing.T, c cache.Cache) {
	_, err := c.ReadRuleset(context.Background())
	require.Error(t, err)
	assert.Equal(t, status.Error, status.Of(err))
	assert.True(t, status.IsKind(err, status.KindNotFound))
	assert.True(t, errors.Is(err, cache.ErrNoRuleset))
}

func testRulesetReplaced(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	first := model.Ruleset{StarLogsLimitMaximum: 10, ShipReward: 3, JumpCostMaximum: 1.5}
	second := model.Ruleset{StarLogsLimitMaximum: 20}

	require.NoError(t, c.WriteRuleset(ctx, first))
	got, err := c.ReadRuleset(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	require.NoError(t, c.WriteRuleset(ctx, second))
	got, err = c.ReadRuleset(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got, "ruleset must be replaced wholesale")
}

func testIdentityReplace(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	v1 := Record("a", 1, 10)
	v2 := Record("a", 1, 10)
	v2.LogHeader = "corrected"
	v2.Nonce = 99

	require.NoError(t, c.WriteRecords(ctx, v1))
	require.NoError(t, c.WriteRecords(ctx, v2))

	got, err := c.ReadRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, v2, got[0])

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "identity must stay unique")
}

func testBatchLastWins(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	first := Record("a", 1, 10)
	last := Record("a", 2, 20)

	require.NoError(t, c.WriteRecords(ctx, first, Record("b", 1, 11), last))

	got, err := c.ReadRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, last, got[0])

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testFilterEmptyMeansAll(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	records := []model.StarLog{Record("a", 1, 10), Record("b", 2, 20), Record("c", 3, 30)}
	require.NoError(t, c.WriteRecords(ctx, records...))

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, records, all)

	byHeight, err := c.ReadRecordsAtHeight(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, records, byHeight)
}

func testReadRecordsSubset(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	a, b, cc := Record("a", 1, 10), Record("b", 2, 20), Record("c", 3, 30)
	require.NoError(t, c.WriteRecords(ctx, a, b, cc))

	got, err := c.ReadRecords(ctx, "a", "c", "missing")
	require.NoError(t, err, "missing identities are not an error")
	assert.ElementsMatch(t, []model.StarLog{a, cc}, got)

	none, err := c.ReadRecords(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testReadAtHeight(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	a, b, cc, d := Record("a", 1, 10), Record("b", 2, 20), Record("c", 2, 21), Record("d", 3, 30)
	require.NoError(t, c.WriteRecords(ctx, a, b, cc, d))

	got, err := c.ReadRecordsAtHeight(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.StarLog{b, cc}, got)

	got, err = c.ReadRecordsAtHeight(ctx, 1, 3, 42)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.StarLog{a, d}, got)

	got, err = c.ReadRecordsAtHeight(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testHighestTies(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	require.NoError(t, c.WriteRecords(ctx, Record("a", 5, 10), Record("b", 5, 11), Record("c", 7, 12)))

	got, err := c.ReadRecordsHighest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, model.Hashes(got))

	require.NoError(t, c.WriteRecords(ctx, Record("d", 7, 13)))
	got, err = c.ReadRecordsHighest(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c", "d"}, model.Hashes(got))
}

func testHighestEmpty(t *testing.T, c cache.Cache) {
	got, err := c.ReadRecordsHighest(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func testLatestEmpty(t *testing.T, c cache.Cache) {
	got, err := c.ReadRecordsLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.Success, status.Of(err))
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int64(0), cache.Cursor(got))
}

func testLatestTies(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	// Height and time are independent ordering keys
	require.NoError(t, c.WriteRecords(ctx, Record("a", 9, 10), Record("b", 1, 30), Record("c", 2, 30)))

	got, err := c.ReadRecordsLatest(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, model.Hashes(got))
	assert.Equal(t, int64(30), cache.Cursor(got))

	highest, err := c.ReadRecordsHighest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, model.Hashes(highest))
}

func testReplaceMovesProjections(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	require.NoError(t, c.WriteRecords(ctx, Record("a", 9, 90), Record("b", 5, 50)))
	require.NoError(t, c.WriteRecords(ctx, Record("a", 1, 10)))

	highest, err := c.ReadRecordsHighest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, model.Hashes(highest))

	latest, err := c.ReadRecordsLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, model.Hashes(latest))

	atNine, err := c.ReadRecordsAtHeight(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, atNine, "old height index entry must not survive a replace")
}

func testReadsReturnCopies(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	orig := Record("a", 1, 10)
	require.NoError(t, c.WriteRecords(ctx, orig))

	got, err := c.ReadRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].LogHeader = "mutated"
	got[0].Events[0][0] = '['
	got[0].Events = append(got[0].Events, json.RawMessage(`{}`))

	again, err := c.ReadRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, orig, again[0])

	latest, err := c.ReadRecordsLatest(ctx)
	require.NoError(t, err)
	latest[0].Events[0][0] = '['
	highest, err := c.ReadRecordsHighest(ctx)
	require.NoError(t, err)
	assert.Equal(t, orig, highest[0])
}

func testWriteCopiesInput(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	in := Record("a", 1, 10)
	want := in.Clone()
	require.NoError(t, c.WriteRecords(ctx, in))

	in.LogHeader = "mutated after write"
	in.Events[0][0] = '['

	got, err := c.ReadRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func testNilEvents(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	rec := model.StarLog{Hash: "bare", Height: 1, Time: 1}
	require.NoError(t, c.WriteRecords(ctx, rec))

	got, err := c.ReadRecords(ctx, "bare")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func testEmptyWrite(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	require.NoError(t, c.WriteRecords(ctx))

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCancelledContext(t *testing.T, c cache.Cache) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WriteRecords(ctx, Record("a", 1, 10))
	require.Error(t, err)
	assert.Equal(t, status.Error, status.Of(err))
	assert.True(t, status.IsKind(err, status.KindCanceled))

	_, err = c.ReadRecordsLatest(ctx)
	require.Error(t, err)
	assert.True(t, status.IsKind(err, status.KindCanceled))

	all, err := c.ReadRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "a cancelled write must not be applied")
}

// testReadsSeeWholeBatches writes batches that each share a new height and
// time while readers run. A read must see every record of a batch or none.
func testReadsSeeWholeBatches(t *testing.T, c cache.Cache) {
	const (
		batches   = 20
		batchSize = 5
		readers   = 3
	)
	ctx := context.Background()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for b := int64(1); b <= batches; b++ {
			batch := make([]model.StarLog, 0, batchSize)
			for i := 0; i < batchSize; i++ {
				batch = append(batch, Record(fmt.Sprintf("b%02d-%d", b, i), b, b*10))
			}
			if !assert.NoError(t, c.WriteRecords(ctx, batch...)) {
				return
			}
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				latest, err := c.ReadRecordsLatest(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assertWholeBatch(t, "latest", latest, batchSize)

				highest, err := c.ReadRecordsHighest(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assertWholeBatch(t, "highest", highest, batchSize)

				all, err := c.ReadRecords(ctx)
				if !assert.NoError(t, err) {
					return
				}
				perTime := make(map[int64]int)
				for _, l := range all {
					perTime[l.Time]++
				}
				for tm, n := range perTime {
					assert.Equal(t, batchSize, n, "all records: time %d", tm)
				}
			}
		}()
	}

	wg.Wait()

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, batches*batchSize)
}

func assertWholeBatch(t *testing.T, read string, logs []model.StarLog, size int) {
	t.Helper()
	if len(logs) == 0 {
		return
	}
	assert.Len(t, logs, size, "%s: partial batch", read)
	for _, l := range logs {
		assert.Equal(t, logs[0].Time, l.Time, "%s: mixed batches", read)
	}
}
