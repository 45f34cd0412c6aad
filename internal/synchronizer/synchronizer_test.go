package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
	"github.com/roach88/cryptoverse/internal/testutil"
)

func rules(limit int) *model.Ruleset {
	return &model.Ruleset{StarLogsLimitMaximum: limit}
}

// seeded returns a memory cache holding the ruleset, as Initialize leaves it.
func seeded(t *testing.T, limit int) *cache.Memory {
	t.Helper()
	m := cache.NewMemory()
	require.NoError(t, m.WriteRuleset(context.Background(), *rules(limit)))
	return m
}

func TestSynchronize_PaginationStopsOnShortPage(t *testing.T) {
	const n = 3
	f := testutil.NewStubFetcher(rules(n),
		testutil.PageOf(testutil.Run("a", n, 1)...),
		testutil.PageOf(testutil.Run("b", n, 10)...),
		testutil.PageOf(testutil.Run("c", 1, 20)...),
	)
	m := seeded(t, n)
	s := New(m, f)

	require.NoError(t, s.Synchronize(context.Background()))

	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, []int64{0, n, 2 * n}, f.Offsets())
	for _, q := range f.Queries() {
		assert.Equal(t, int64(0), q.SinceTime)
		assert.Equal(t, int64(n), q.Limit)
	}
	assert.Equal(t, 2*n+1, m.Len())
	assert.Equal(t, Idle, s.State())
}

func TestSynchronize_ExactMultipleNeedsExtraFetch(t *testing.T) {
	const n = 2
	f := testutil.NewStubFetcher(rules(n),
		testutil.PageOf(testutil.Run("a", n, 1)...),
		testutil.PageOf(testutil.Run("b", n, 10)...),
		testutil.PageOf(testutil.Run("c", n, 20)...),
		testutil.PageOf(),
	)
	s := New(seeded(t, n), f)

	require.NoError(t, s.Synchronize(context.Background()))

	assert.Equal(t, 4, f.Calls())
	assert.Equal(t, []int64{0, 2, 4, 6}, f.Offsets())
}

func TestSynchronize_EmptyBacklogIsOneFetch(t *testing.T) {
	f := testutil.NewStubFetcher(rules(5))
	s := New(seeded(t, 5), f)

	require.NoError(t, s.Synchronize(context.Background()))
	assert.Equal(t, 1, f.Calls())

	stats, ok := s.LastPass()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Pages)
	assert.Zero(t, stats.Fetched)
}

func TestSynchronize_SinceTimeFixedAtCursor(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, 2)
	require.NoError(t, m.WriteRecords(ctx, testutil.StarLog("old", 50), testutil.StarLog("older", 40)))

	f := testutil.NewStubFetcher(rules(2),
		testutil.PageOf(testutil.Run("a", 2, 51)...),
		testutil.PageOf(testutil.Run("b", 1, 90)...),
	)
	s := New(m, f)
	require.NoError(t, s.Synchronize(ctx))

	// The floor does not move to 52 after page one is written
	for _, q := range f.Queries() {
		assert.Equal(t, int64(50), q.SinceTime)
	}
	stats, _ := s.LastPass()
	assert.Equal(t, int64(50), stats.Cursor)
}

func TestSynchronize_FetchFailureAbortsPass(t *testing.T) {
	const n = 2
	boom := errors.New("connection reset")
	f := testutil.NewStubFetcher(rules(n),
		testutil.PageOf(testutil.Run("a", n, 1)...),
		testutil.FailPage(status.New(status.KindTransport, "fetch", boom)),
		testutil.PageOf(testutil.Run("never", n, 10)...),
	)
	c := testutil.NewFaultCache(seeded(t, n))
	s := New(c, f)

	err := s.Synchronize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "error must be forwarded unchanged")
	assert.Equal(t, status.Error, status.Of(err))

	assert.Equal(t, 1, c.SuccessfulWrites())
	assert.Equal(t, 2, f.Calls(), "no fetches after the failure")
	assert.Equal(t, Failed, s.State())

	stats, ok := s.LastPass()
	require.True(t, ok)
	assert.False(t, stats.OK())
	assert.ErrorIs(t, stats.Err, boom)
}

// A failed page write does not stop the pass: the page is skipped and the
// offset still advances past it. Those records stay missing until a later
// pass refetches them.
func TestSynchronize_WriteFailureSkipsPageAndAdvancesOffset(t *testing.T) {
	ctx := context.Background()
	const n = 2
	f := testutil.NewStubFetcher(rules(n),
		testutil.PageOf(testutil.Run("lost", n, 1)...),
		testutil.PageOf(testutil.Run("kept", 1, 10)...),
	)
	c := testutil.NewFaultCache(seeded(t, n)).FailWriteOn(1, nil)
	s := New(c, f)

	require.NoError(t, s.Synchronize(ctx))
	assert.Equal(t, []int64{0, n}, f.Offsets())

	all, err := c.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept0"}, model.Hashes(all))

	stats, _ := s.LastPass()
	assert.Equal(t, 1, stats.WriteFailures)
	assert.Equal(t, n+1, stats.Fetched)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, Idle, s.State())
}

func TestSynchronize_AbortOnWriteError(t *testing.T) {
	const n = 2
	f := testutil.NewStubFetcher(rules(n),
		testutil.PageOf(testutil.Run("a", n, 1)...),
		testutil.PageOf(testutil.Run("b", 1, 10)...),
	)
	c := testutil.NewFaultCache(seeded(t, n)).FailWriteOn(1, nil)
	s := New(c, f, WithAbortOnWriteError(true))

	err := s.Synchronize(context.Background())
	require.Error(t, err)
	assert.True(t, status.IsKind(err, status.KindStorage))
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, Failed, s.State())
}

func TestSynchronize_RequiresCachedRuleset(t *testing.T) {
	f := testutil.NewStubFetcher(rules(2))
	s := New(cache.NewMemory(), f)

	err := s.Synchronize(context.Background())
	require.Error(t, err)
	assert.True(t, status.IsKind(err, status.KindNotFound))
	assert.Zero(t, f.Calls())
}

func TestSynchronize_RejectsZeroPageSize(t *testing.T) {
	f := testutil.NewStubFetcher(rules(0))
	s := New(seeded(t, 0), f)

	err := s.Synchronize(context.Background())
	require.Error(t, err)
	assert.True(t, status.IsKind(err, status.KindInvalid))
	assert.Zero(t, f.Calls())
}

func TestSynchronize_CursorReadFailure(t *testing.T) {
	f := testutil.NewStubFetcher(rules(2))
	c := testutil.NewFaultCache(seeded(t, 2)).FailLatest(nil)
	s := New(c, f)

	err := s.Synchronize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Zero(t, f.Calls())
}

func TestSynchronize_PassStats(t *testing.T) {
	clock := testutil.NewDeterministicClock(time.Second)
	f := testutil.NewStubFetcher(rules(2),
		testutil.PageOf(testutil.Run("a", 2, 1)...),
		testutil.PageOf(testutil.Run("b", 1, 5)...),
	)
	s := New(seeded(t, 2), f,
		WithClock(clock),
		WithPassIDGenerator(NewFixedGenerator("pass-1", "pass-2")),
	)

	_, ok := s.LastPass()
	assert.False(t, ok)

	require.NoError(t, s.Synchronize(context.Background()))
	stats, ok := s.LastPass()
	require.True(t, ok)
	assert.Equal(t, PassStats{
		ID:        "pass-1",
		Cursor:    0,
		Limit:     2,
		Pages:     2,
		Fetched:   3,
		Written:   3,
		StartedAt: testutil.Epoch,
		Duration:  time.Second,
	}, stats)

	require.NoError(t, s.Synchronize(context.Background()))
	stats, _ = s.LastPass()
	assert.Equal(t, "pass-2", stats.ID)
	assert.Equal(t, int64(5), stats.Cursor)
	assert.Equal(t, int64(2), s.Passes())
}

func TestSynchronize_PassesAreSerialized(t *testing.T) {
	f := testutil.NewStubFetcher(rules(2))
	release := f.Hold()
	s := New(seeded(t, 2), f)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Synchronize(context.Background()))
		}()
	}

	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Syncing, s.State())

	// The second pass cannot fetch while the first holds the worker
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.Calls())

	release()
	wg.Wait()
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, int64(2), s.Passes())
}

func TestInitialize_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewStubFetcher(rules(2),
		testutil.PageOf(
			model.StarLog{Hash: "a", Time: 10},
			model.StarLog{Hash: "b", Time: 20},
		),
		testutil.PageOf(model.StarLog{Hash: "c", Time: 30}),
	)
	m := cache.NewMemory()
	s := New(m, f)
	t.Cleanup(s.Stop)

	assert.Equal(t, Uninitialized, s.State())
	require.NoError(t, s.Initialize(ctx))

	assert.True(t, s.Initialized())
	assert.Equal(t, Idle, s.State())

	all, err := m.ReadRecords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, model.Hashes(all))

	latest, err := m.ReadRecordsLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, model.Hashes(latest))

	cached, err := m.ReadRuleset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.StarLogsLimitMaximum)
}

func TestInitialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewStubFetcher(rules(2))
	s := New(cache.NewMemory(), f)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	assert.Equal(t, 1, f.RulesCalls())
	assert.Equal(t, int64(1), s.Passes())
}

func TestInitialize_ConcurrentCallWhileFirstPassRuns(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewStubFetcher(rules(2))
	release := f.Hold()
	s := New(cache.NewMemory(), f)
	t.Cleanup(s.Stop)

	done := make(chan error, 1)
	go func() { done <- s.Initialize(ctx) }()

	// The first call is inside its pass, so the state reads Syncing
	require.Eventually(t, func() bool { return f.Calls() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Syncing, s.State())

	require.NoError(t, s.Initialize(ctx))
	assert.False(t, s.Initialized())

	release()
	require.NoError(t, <-done)

	assert.True(t, s.Initialized())
	assert.Equal(t, 1, f.RulesCalls())
	assert.Equal(t, int64(1), s.Passes())
}

func TestInitialize_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		fetcher  func() *testutil.StubFetcher
		cache    func() cache.Cache
		wantKind status.Kind
		wantErr  error
	}{
		{
			name:     "rules fetch fails",
			fetcher:  func() *testutil.StubFetcher { return testutil.NewStubFetcher(nil).FailRules(boom) },
			cache:    func() cache.Cache { return cache.NewMemory() },
			wantKind: status.KindUnknown,
			wantErr:  boom,
		},
		{
			name:     "empty ruleset body",
			fetcher:  func() *testutil.StubFetcher { return testutil.NewStubFetcher(nil) },
			cache:    func() cache.Cache { return cache.NewMemory() },
			wantKind: status.KindNotFound,
			wantErr:  ErrNoRuleset,
		},
		{
			name:     "invalid ruleset",
			fetcher:  func() *testutil.StubFetcher { return testutil.NewStubFetcher(rules(0)) },
			cache:    func() cache.Cache { return cache.NewMemory() },
			wantKind: status.KindInvalid,
		},
		{
			name:     "ruleset write fails",
			fetcher:  func() *testutil.StubFetcher { return testutil.NewStubFetcher(rules(2)) },
			cache:    func() cache.Cache { return testutil.NewFaultCache(cache.NewMemory()).FailWriteRuleset(boom) },
			wantKind: status.KindStorage,
			wantErr:  boom,
		},
		{
			name: "first pass fails",
			fetcher: func() *testutil.StubFetcher {
				return testutil.NewStubFetcher(rules(2), testutil.FailPage(boom))
			},
			cache:    func() cache.Cache { return cache.NewMemory() },
			wantKind: status.KindUnknown,
			wantErr:  boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cache(), tt.fetcher())
			t.Cleanup(s.Stop)

			err := s.Initialize(context.Background())
			require.Error(t, err)
			assert.Equal(t, status.Error, status.Of(err))
			assert.Equal(t, tt.wantKind, status.KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, Failed, s.State())
			assert.False(t, s.Initialized())
			assert.False(t, s.Running(), "poller must not start after a failed Initialize")
		})
	}
}

func TestInitialize_InvalidRulesetNotCached(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()
	s := New(m, testutil.NewStubFetcher(rules(-1)))

	require.Error(t, s.Initialize(ctx))
	_, err := m.ReadRuleset(ctx)
	assert.True(t, status.IsKind(err, status.KindNotFound))
}

func TestInitialize_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewStubFetcher(rules(2), testutil.FailPage(nil))
	s := New(cache.NewMemory(), f)
	t.Cleanup(s.Stop)

	require.Error(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.Initialized())
	assert.Equal(t, 2, f.RulesCalls())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "syncing", Syncing.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestFixedGenerator_RepeatsLast(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())

	assert.Equal(t, "pass", NewFixedGenerator().Generate())
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	g := UUIDv7Generator{}
	first := g.Generate()
	time.Sleep(2 * time.Millisecond)
	second := g.Generate()

	assert.Len(t, first, 36)
	assert.Less(t, first, second)
}
