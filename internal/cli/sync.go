package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptoverse/internal/config"
	"github.com/roach88/cryptoverse/internal/fetch"
	"github.com/roach88/cryptoverse/internal/synchronizer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	CacheFlags

	APIURL            string
	Watch             bool
	AbortOnWriteError bool
	PollInterval      time.Duration

	// PassIDs allows overriding the pass id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	PassIDs synchronizer.PassIDGenerator

	// Clock allows overriding the pass clock (for testing).
	Clock synchronizer.Clock
}

// SyncResult is the output of the sync command.
type SyncResult struct {
	API     string                 `json:"api"`
	Backend string                 `json:"backend"`
	State   string                 `json:"state"`
	Pass    synchronizer.PassStats `json:"pass"`
}

// String renders the result for text output.
func (r SyncResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Synchronized %d star log(s) from %s into %s cache\n", r.Pass.Written, r.API, r.Backend)
	fmt.Fprintf(&b, "  pass:           %s\n", r.Pass.ID)
	fmt.Fprintf(&b, "  since time:     %d\n", r.Pass.Cursor)
	fmt.Fprintf(&b, "  page size:      %d\n", r.Pass.Limit)
	fmt.Fprintf(&b, "  pages:          %d\n", r.Pass.Pages)
	fmt.Fprintf(&b, "  fetched:        %d\n", r.Pass.Fetched)
	fmt.Fprintf(&b, "  write failures: %d\n", r.Pass.WriteFailures)
	fmt.Fprintf(&b, "  duration:       %s", r.Pass.Duration)
	return b.String()
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return newSyncCommand(&SyncOptions{RootOptions: rootOpts})
}

func newSyncCommand(opts *SyncOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the ruleset and synchronize star logs into the cache",
		Long: `Fetch the ruleset from the server, cache it, and pull every star log newer
than the latest cached one, page by page.

With --watch the command keeps polling at --poll-interval until interrupted.

Example:
  cryptoverse sync --api http://localhost:8080 --db ./cryptoverse.db
  cryptoverse sync --backend redis --redis 127.0.0.1:6379 --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	opts.CacheFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.APIURL, "api", "", "base URL of the cryptoverse server")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep polling until interrupted")
	cmd.Flags().BoolVar(&opts.AbortOnWriteError, "abort-on-write-error", false, "abort a pass on the first failed page write")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "interval between passes with --watch")

	return cmd
}

// syncConfig resolves configuration with flag overrides applied.
func syncConfig(opts *SyncOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return nil, err
	}

	if err := opts.CacheFlags.apply(cmd, &cfg.Cache); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if cmd.Flags().Changed("api") {
		cfg.APIURL = opts.APIURL
	}
	if cmd.Flags().Changed("abort-on-write-error") {
		cfg.AbortOnWriteError = opts.AbortOnWriteError
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = opts.PollInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return cfg, nil
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := syncConfig(opts, cmd)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	c, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer closeCache()

	client := fetch.New(cfg.APIURL, fetch.WithTimeout(cfg.RequestTimeout))

	syncOpts := []synchronizer.Option{
		synchronizer.WithPollInterval(cfg.PollInterval),
		synchronizer.WithAbortOnWriteError(cfg.AbortOnWriteError),
	}
	if opts.PassIDs != nil {
		syncOpts = append(syncOpts, synchronizer.WithPassIDGenerator(opts.PassIDs))
	}
	if opts.Clock != nil {
		syncOpts = append(syncOpts, synchronizer.WithClock(opts.Clock))
	}
	s := synchronizer.New(c, client, syncOpts...)
	defer s.Stop()

	slog.Info("sync starting", "api", cfg.APIURL, "backend", cfg.Cache.Backend)
	if err := s.Initialize(ctx); err != nil {
		return failWith(formatter, "sync failed", err)
	}

	stats, _ := s.LastPass()
	result := SyncResult{
		API:     cfg.APIURL,
		Backend: cfg.Cache.Backend.String(),
		State:   s.State().String(),
		Pass:    stats,
	}
	if err := formatter.Success(result); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watch(ctx, cancel, s, formatter)
}

// watch blocks until a signal arrives or ctx ends, then stops the poller.
func watch(ctx context.Context, cancel context.CancelFunc, s *synchronizer.Synchronizer, formatter *OutputFormatter) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	formatter.VerboseLog("Watching for new star logs. Press Ctrl-C to stop.")

	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	case <-ctx.Done():
		// Parent context cancelled (e.g., from test)
	}

	s.Stop()
	slog.Info("sync stopped gracefully", "passes", s.Passes())
	if formatter.Format == "text" {
		fmt.Fprintf(formatter.Writer, "Stopped after %d pass(es)\n", s.Passes())
	}
	return nil
}
