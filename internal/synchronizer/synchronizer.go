package synchronizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/fetch"
	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

// DefaultPollInterval is how often the maintenance poller runs a pass.
const DefaultPollInterval = time.Minute

// ErrNoRuleset is returned (kind not_found) when the server answers the
// ruleset request with an empty body.
var ErrNoRuleset = errors.New("server returned no ruleset")

// Clock supplies wall time for pass statistics.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Synchronizer pulls star logs from a Fetcher into a Cache.
//
// Thread-safety model:
//   - Initialize, Synchronize, Start, Stop, Trigger: safe from any goroutine
//   - Passes never overlap; concurrent callers wait for the running pass
type Synchronizer struct {
	cache   cache.Cache
	fetcher fetch.Fetcher

	passIDs           PassIDGenerator
	clock             Clock
	pollInterval      time.Duration
	abortOnWriteError bool

	passMu sync.Mutex // serializes passes

	mu           sync.Mutex // guards the fields below
	state        State
	initialized  bool
	initializing bool // set for the whole Initialize call, including its first pass
	lastPass     *PassStats
	passes       int64
	poll         *poller
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithPollInterval sets the maintenance poll interval.
// Default: one minute (DefaultPollInterval). Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAbortOnWriteError makes a failed page write abort the pass with that
// error instead of being logged and skipped.
func WithAbortOnWriteError(abort bool) Option {
	return func(s *Synchronizer) {
		s.abortOnWriteError = abort
	}
}

// WithPassIDGenerator replaces the UUIDv7 pass id generator.
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(s *Synchronizer) {
		if g != nil {
			s.passIDs = g
		}
	}
}

// WithClock replaces the wall clock used for pass statistics.
func WithClock(c Clock) Option {
	return func(s *Synchronizer) {
		if c != nil {
			s.clock = c
		}
	}
}

// New creates a Synchronizer. Cache and Fetcher backends are chosen by the
// caller; the Synchronizer depends only on the interfaces.
func New(c cache.Cache, f fetch.Fetcher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cache:        c,
		fetcher:      f,
		passIDs:      UUIDv7Generator{},
		clock:        systemClock{},
		pollInterval: DefaultPollInterval,
		state:        Uninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialized reports whether Initialize has completed successfully.
func (s *Synchronizer) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// LastPass returns the statistics of the most recent pass.
// ok is false if no pass has run yet.
func (s *Synchronizer) LastPass() (stats PassStats, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPass == nil {
		return PassStats{}, false
	}
	return *s.lastPass, true
}

// Passes returns the number of passes run so far, successful or not.
func (s *Synchronizer) Passes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

func (s *Synchronizer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Initialize fetches and caches the ruleset, runs the first pass and starts
// the maintenance poller.
//
// Calling Initialize on an initialized Synchronizer, or while another
// Initialize call is running, logs a warning and returns nil. The first failing step moves the state to Failed and its
// error is returned unchanged; Initialize may then be called again.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		slog.Warn("synchronizer already initialized")
		return nil
	}
	if s.initializing {
		s.mu.Unlock()
		slog.Warn("synchronizer initialization already in progress")
		return nil
	}
	s.initializing = true
	s.state = Initializing
	s.mu.Unlock()

	if err := s.initialize(ctx); err != nil {
		s.mu.Lock()
		s.state = Failed
		s.initializing = false
		s.mu.Unlock()
		slog.Error("synchronizer initialization failed", "error", err, "kind", status.KindOf(err))
		return err
	}

	s.mu.Lock()
	s.state = Idle
	s.initialized = true
	s.initializing = false
	s.mu.Unlock()

	slog.Info("synchronizer initialized", "event", "initialized")

	// The poller outlives the Initialize call; only Stop ends it.
	s.Start(context.WithoutCancel(ctx))
	return nil
}

func (s *Synchronizer) initialize(ctx context.Context) error {
	const op = "initialize"

	rules, err := s.fetcher.Rules(ctx)
	if err != nil {
		slog.Error("failed to fetch ruleset", "error", err)
		return err
	}
	if rules == nil {
		return status.New(status.KindNotFound, op, ErrNoRuleset)
	}
	if err := model.ValidateRuleset(*rules); err != nil {
		return status.New(status.KindInvalid, op, err)
	}

	if err := s.cache.WriteRuleset(ctx, *rules); err != nil {
		slog.Error("failed to write ruleset to cache", "error", err)
		return err
	}

	if err := s.Synchronize(ctx); err != nil {
		return err
	}
	return nil
}

// Synchronize runs one pass. It blocks while another pass is running.
//
// The ruleset is read from the cache, so Synchronize can run without
// Initialize as long as a ruleset has been cached.
func (s *Synchronizer) Synchronize(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	stats := PassStats{
		ID:        s.passIDs.Generate(),
		StartedAt: s.clock.Now(),
	}
	log := slog.With("pass", stats.ID)

	s.setState(Syncing)
	err := s.pass(ctx, log, &stats)
	stats.Duration = s.clock.Now().Sub(stats.StartedAt)
	stats.Err = err

	s.mu.Lock()
	s.passes++
	s.lastPass = &stats
	if err != nil {
		s.state = Failed
	} else {
		s.state = Idle
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("synchronize pass failed",
			"error", err,
			"kind", status.KindOf(err),
			"pages", stats.Pages,
			"fetched", stats.Fetched,
		)
		return err
	}

	log.Info("synchronize pass complete",
		"cursor", stats.Cursor,
		"pages", stats.Pages,
		"fetched", stats.Fetched,
		"written", stats.Written,
		"write_failures", stats.WriteFailures,
		"duration", stats.Duration,
	)
	return nil
}

func (s *Synchronizer) pass(ctx context.Context, log *slog.Logger, st *PassStats) error {
	const op = "synchronize"

	latest, err := s.cache.ReadRecordsLatest(ctx)
	if err != nil {
		return err
	}
	st.Cursor = cache.Cursor(latest)

	rules, err := s.cache.ReadRuleset(ctx)
	if err != nil {
		return err
	}
	st.Limit = int64(rules.StarLogsLimitMaximum)
	if st.Limit <= 0 {
		// A zero page size would never produce a short page.
		return status.Errorf(status.KindInvalid, op, "star_logs_max_limit must be positive, got %d", st.Limit)
	}

	var offset int64
	for {
		page, err := s.fetcher.StarLogs(ctx, fetch.StarLogsQuery{
			SinceTime: fetch.Int64(st.Cursor),
			Limit:     fetch.Int64(st.Limit),
			Offset:    fetch.Int64(offset),
		})
		if err != nil {
			return err
		}
		st.Pages++
		st.Fetched += len(page)

		if len(page) > 0 {
			if err := s.cache.WriteRecords(ctx, page...); err != nil {
				st.WriteFailures++
				if s.abortOnWriteError {
					return err
				}
				log.Warn("star log page write failed, skipping page",
					"offset", offset,
					"records", len(page),
					"error", err,
				)
			} else {
				st.Written += len(page)
			}
		}

		log.Debug("star log page", "offset", offset, "records", len(page))

		// Advances past the page whether or not the write succeeded
		offset += int64(len(page))
		if int64(len(page)) != st.Limit {
			return nil
		}
	}
}
