package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptoverse/internal/model"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	CacheFlags

	Hashes  []string
	Heights []int64
	Highest bool
	Latest  bool
}

// ShowResult is the output of the show command.
type ShowResult struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Records []model.StarLog `json:"records"`
}

// String renders the result for text output, one record per line.
func (r ShowResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d star log(s) [%s]", r.Count, r.Query)
	for _, l := range r.Records {
		fmt.Fprintf(&b, "\n  height=%d time=%d hash=%s previous=%s events=%d",
			l.Height, l.Time, l.Hash, l.PreviousHash, len(l.Events))
	}
	return b.String()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print cached star logs",
		Long: `Print star logs from a durable cache (sqlite or redis).

Without selection flags every cached star log is printed. Records are ordered
by height, then time, then hash.

Example:
  cryptoverse show --db ./cryptoverse.db --highest
  cryptoverse show --hash 0a1b --hash 2c3d --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	opts.CacheFlags.bind(cmd)
	cmd.Flags().StringArrayVar(&opts.Hashes, "hash", nil, "select by hash (repeatable)")
	cmd.Flags().Int64SliceVar(&opts.Heights, "height", nil, "select by height (repeatable)")
	cmd.Flags().BoolVar(&opts.Highest, "highest", false, "select every star log at the greatest height")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "select every star log at the greatest time")
	cmd.MarkFlagsMutuallyExclusive("hash", "height", "highest", "latest")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := opts.CacheFlags.apply(cmd, &cfg.Cache); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if !cfg.Cache.Backend.Durable() {
		return NewExitError(ExitCommandError, fmt.Sprintf("show needs a durable cache backend, got %s", cfg.Cache.Backend))
	}

	ctx := commandContext(cmd)
	c, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer closeCache()

	var (
		query string
		logs  []model.StarLog
	)
	switch {
	case opts.Highest:
		query = "highest"
		logs, err = c.ReadRecordsHighest(ctx)
	case opts.Latest:
		query = "latest"
		logs, err = c.ReadRecordsLatest(ctx)
	case len(opts.Heights) > 0:
		query = "height"
		logs, err = c.ReadRecordsAtHeight(ctx, opts.Heights...)
	case len(opts.Hashes) > 0:
		query = "hash"
		logs, err = c.ReadRecords(ctx, opts.Hashes...)
	default:
		query = "all"
		logs, err = c.ReadRecords(ctx)
	}
	if err != nil {
		return failWith(formatter, "show failed", err)
	}

	if logs == nil {
		logs = []model.StarLog{}
	}
	model.SortForDisplay(logs)
	formatter.VerboseLog("Read %d star log(s) from %s cache", len(logs), cfg.Cache.Backend)

	return formatter.Success(ShowResult{Query: query, Count: len(logs), Records: logs})
}
