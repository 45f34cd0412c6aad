package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptoverse/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the cryptoverse CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&SyncOptions{})
}

// newRootCommand lets tests inject sync hooks (pass ids, clock).
func newRootCommand(syncOpts *SyncOptions) *cobra.Command {
	opts := &RootOptions{}
	syncOpts.RootOptions = opts

	cmd := &cobra.Command{
		Use:   "cryptoverse",
		Short: "cryptoverse - star log ledger synchronizer",
		Long: `Keep a local cache of the cryptoverse star log ledger in sync with a server.

The ruleset and star logs are fetched over HTTP and stored in a memory,
SQLite or Redis cache. Configuration comes from CRYPTOVERSE_* environment
variables, an optional YAML file (--config) and command flags.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main reports errors with the exit code
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd, opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(newSyncCommand(syncOpts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogging sends structured logs to the command's stderr so they never
// mix with structured output on stdout.
func setupLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// newFormatter builds the formatter shared by every subcommand.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads configuration for a subcommand. Errors are command errors.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}
