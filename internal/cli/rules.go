package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptoverse/internal/fetch"
	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
	"github.com/roach88/cryptoverse/internal/synchronizer"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	CacheFlags

	Remote bool
	APIURL string
}

// RulesResult is the output of the rules command.
type RulesResult struct {
	Source  string        `json:"source"` // "cache" | "remote"
	Valid   bool          `json:"valid"`
	Problem string        `json:"problem,omitempty"`
	Ruleset model.Ruleset `json:"ruleset"`
}

// String renders the result for text output.
func (r RulesResult) String() string {
	var b strings.Builder
	mark := "✓"
	if !r.Valid {
		mark = "✗"
	}
	fmt.Fprintf(&b, "%s Ruleset (%s)\n", mark, r.Source)

	rs := r.Ruleset
	rows := []struct {
		key   string
		value any
	}{
		{"star_logs_max_limit", rs.StarLogsLimitMaximum},
		{"events_max_limit", rs.EventsLimitMaximum},
		{"chains_max_limit", rs.ChainsLimitMaximum},
		{"difficulty_fudge", rs.DifficultyFudge},
		{"difficulty_duration", rs.DifficultyDuration},
		{"difficulty_interval", rs.DifficultyInterval},
		{"difficulty_start", rs.DifficultyStart},
		{"ship_reward", rs.ShipReward},
		{"cartesian_digits", rs.CartesianDigits},
		{"jump_cost_min", rs.JumpCostMinimum},
		{"jump_cost_max", rs.JumpCostMaximum},
		{"jump_distance_max", rs.JumpDistanceMaximum},
	}
	for i, row := range rows {
		fmt.Fprintf(&b, "  %-20s %v", row.key+":", row.value)
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}

	if r.Problem != "" {
		fmt.Fprintf(&b, "\n\n  %s", strings.ReplaceAll(r.Problem, "\n", "\n  "))
	}
	return b.String()
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the ruleset",
		Long: `Print the cached ruleset, or with --remote fetch it from the server.

Either way the ruleset is checked against the ruleset schema; a ruleset that
fails the check exits with status 1.

Example:
  cryptoverse rules --db ./cryptoverse.db
  cryptoverse rules --remote --api http://localhost:8080 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	opts.CacheFlags.bind(cmd)
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "fetch the ruleset from the server instead of the cache")
	cmd.Flags().StringVar(&opts.APIURL, "api", "", "base URL of the cryptoverse server (with --remote)")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := opts.CacheFlags.apply(cmd, &cfg.Cache); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if cmd.Flags().Changed("api") {
		cfg.APIURL = opts.APIURL
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	ctx := commandContext(cmd)
	result := RulesResult{Source: "cache"}

	if opts.Remote {
		result.Source = "remote"
		client := fetch.New(cfg.APIURL, fetch.WithTimeout(cfg.RequestTimeout))
		rules, err := client.Rules(ctx)
		if err != nil {
			return failWith(formatter, "failed to fetch ruleset", err)
		}
		if rules == nil {
			return failWith(formatter, "failed to fetch ruleset",
				status.New(status.KindNotFound, "fetch rules", synchronizer.ErrNoRuleset))
		}
		result.Ruleset = *rules
	} else {
		if !cfg.Cache.Backend.Durable() {
			return NewExitError(ExitCommandError, fmt.Sprintf("rules needs a durable cache backend, got %s", cfg.Cache.Backend))
		}
		c, closeCache, err := openCache(ctx, cfg.Cache)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open cache", err)
		}
		defer closeCache()

		result.Ruleset, err = c.ReadRuleset(ctx)
		if err != nil {
			return failWith(formatter, "failed to read ruleset", err)
		}
	}

	verr := model.ValidateRuleset(result.Ruleset)
	var invalid *model.ValidationError
	switch {
	case verr == nil:
		result.Valid = true
		return formatter.Success(result)
	case errors.As(verr, &invalid):
		result.Problem = invalid.Details
	default:
		return WrapExitError(ExitFailure, "failed to validate ruleset", verr)
	}

	if formatter.Format == "text" {
		fmt.Fprintln(formatter.Writer, result)
	} else {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    string(status.KindInvalid),
				Message: "ruleset failed validation",
			},
		})
		if err != nil {
			return err
		}
	}
	exitErr := NewExitError(ExitFailure, "ruleset failed validation")
	exitErr.Reported = true
	return exitErr
}
