package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/cryptoverse/internal/fetch"
	"github.com/roach88/cryptoverse/internal/model"
)

// ErrInjected is the default failure returned by scripted faults.
var ErrInjected = errors.New("injected failure")

// Page is one scripted StarLogs response.
type Page struct {
	Logs []model.StarLog
	Err  error
}

// PageOf scripts a successful page.
func PageOf(logs ...model.StarLog) Page {
	return Page{Logs: logs}
}

// FailPage scripts a failed fetch.
func FailPage(err error) Page {
	if err == nil {
		err = ErrInjected
	}
	return Page{Err: err}
}

// Query is a StarLogs request as the stub saw it, with nil fields as -1.
type Query struct {
	SinceTime int64
	Limit     int64
	Offset    int64
}

// StubFetcher is a scripted fetch.Fetcher. StarLogs returns the scripted
// pages in order, then empty pages once the script runs out.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StubFetcher struct {
	mu         sync.Mutex
	rules      *model.Ruleset
	rulesErr   error
	pages      []Page
	next       int
	queries    []Query
	rulesCalls int
	gate       chan struct{}
}

var _ fetch.Fetcher = (*StubFetcher)(nil)

// NewStubFetcher creates a stub serving rules and the given pages.
func NewStubFetcher(rules *model.Ruleset, pages ...Page) *StubFetcher {
	return &StubFetcher{rules: rules, pages: pages}
}

// FailRules makes Rules return err.
func (f *StubFetcher) FailRules(err error) *StubFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	f.rulesErr = err
	return f
}

// Push appends pages to the script.
func (f *StubFetcher) Push(pages ...Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, pages...)
}

// Hold makes every StarLogs call block until the returned release function
// is called or the call's context is done.
func (f *StubFetcher) Hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Rules implements fetch.Fetcher.
func (f *StubFetcher) Rules(ctx context.Context) (*model.Ruleset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rulesCalls++
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	if f.rules == nil {
		return nil, nil
	}
	r := f.rules.Clone()
	return &r, nil
}

// StarLogs implements fetch.Fetcher.
func (f *StubFetcher) StarLogs(ctx context.Context, q fetch.StarLogsQuery) ([]model.StarLog, error) {
	f.mu.Lock()
	gate := f.gate
	f.queries = append(f.queries, Query{
		SinceTime: valueOr(q.SinceTime),
		Limit:     valueOr(q.Limit),
		Offset:    valueOr(q.Offset),
	})
	var p Page
	if f.next < len(f.pages) {
		p = f.pages[f.next]
		f.next++
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.Err != nil {
		return nil, p.Err
	}
	return model.CloneAll(p.Logs), nil
}

// Calls returns the number of StarLogs calls.
func (f *StubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// RulesCalls returns the number of Rules calls.
func (f *StubFetcher) RulesCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rulesCalls
}

// Queries returns every StarLogs request in call order.
func (f *StubFetcher) Queries() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

// Offsets returns the offset of every StarLogs request in call order.
func (f *StubFetcher) Offsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.queries))
	for i, q := range f.queries {
		out[i] = q.Offset
	}
	return out
}

func valueOr(p *int64) int64 {
	if p == nil {
		return -1
	}
	return *p
}
