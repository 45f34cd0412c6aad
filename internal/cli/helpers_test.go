package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/synchronizer"
	"github.com/roach88/cryptoverse/internal/testutil"
)

// testAPI replaces the random httptest address in golden output.
const testAPI = "http://cryptoverse.test"

func testRules(limit int) *model.Ruleset {
	return &model.Ruleset{
		DifficultyFudge:      1,
		DifficultyDuration:   60,
		DifficultyInterval:   10,
		DifficultyStart:      16,
		ShipReward:           10,
		CartesianDigits:      3,
		JumpCostMinimum:      0.5,
		JumpCostMaximum:      1.5,
		JumpDistanceMaximum:  2048,
		StarLogsLimitMaximum: limit,
		EventsLimitMaximum:   10,
		ChainsLimitMaximum:   10,
	}
}

// ledgerServer serves /rules and /star-logs from memory, paging by
// since_time (exclusive), limit and offset.
type ledgerServer struct {
	*httptest.Server

	mu      sync.Mutex
	rules   *model.Ruleset
	logs    []model.StarLog
	queries []string
}

func newLedgerServer(t *testing.T, rules *model.Ruleset, logs ...model.StarLog) *ledgerServer {
	t.Helper()
	ls := &ledgerServer{rules: rules, logs: logs}

	mux := http.NewServeMux()
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		if ls.rules == nil {
			return
		}
		_ = json.NewEncoder(w).Encode(ls.rules)
	})
	mux.HandleFunc("/star-logs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		since, _ := strconv.ParseInt(q.Get("since_time"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		ls.mu.Lock()
		defer ls.mu.Unlock()
		ls.queries = append(ls.queries, r.URL.RawQuery)

		var matched []model.StarLog
		for _, l := range ls.logs {
			if l.Time > since {
				matched = append(matched, l)
			}
		}
		slices.SortFunc(matched, func(a, b model.StarLog) int { return int(a.Time - b.Time) })

		page := []model.StarLog{}
		if offset < len(matched) {
			page = matched[offset:min(offset+limit, len(matched))]
		}
		_ = json.NewEncoder(w).Encode(page)
	})

	ls.Server = httptest.NewServer(mux)
	t.Cleanup(ls.Close)
	return ls
}

func (ls *ledgerServer) add(logs ...model.StarLog) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.logs = append(ls.logs, logs...)
}

func (ls *ledgerServer) starLogQueries() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return slices.Clone(ls.queries)
}

// cliRun is one command invocation with captured output.
type cliRun struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	err    error
}

// execute runs the CLI with deterministic pass ids and clock.
func execute(t *testing.T, args ...string) cliRun {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) cliRun {
	t.Helper()
	cmd := newRootCommand(&SyncOptions{
		PassIDs: synchronizer.NewFixedGenerator("pass-1", "pass-2", "pass-3"),
		Clock:   testutil.NewDeterministicClock(time.Second),
	})

	run := cliRun{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	cmd.SetOut(run.stdout)
	cmd.SetErr(run.stderr)
	cmd.SetArgs(args)
	run.err = cmd.ExecuteContext(ctx)
	return run
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cryptoverse.db")
}

func assertGolden(t *testing.T, name string, got []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, got)
}

// stable strips the per-run server address from output.
func stable(out *bytes.Buffer, ls *ledgerServer) []byte {
	return bytes.ReplaceAll(out.Bytes(), []byte(ls.URL), []byte(testAPI))
}
