package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptoverse/internal/cache"
	"github.com/roach88/cryptoverse/internal/cache/rediscache"
	"github.com/roach88/cryptoverse/internal/cache/sqlitecache"
	"github.com/roach88/cryptoverse/internal/config"
	"github.com/roach88/cryptoverse/internal/status"
)

// CacheFlags are the backend selection flags shared by every subcommand.
// Flags override configuration only when set on the command line.
type CacheFlags struct {
	Backend   string
	Database  string
	RedisAddr string
}

func (f *CacheFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Backend, "backend", "", "cache backend (memory|sqlite|redis)")
	cmd.Flags().StringVar(&f.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&f.RedisAddr, "redis", "", "Redis address (host:port)")
}

// apply copies changed flags onto cfg.
func (f *CacheFlags) apply(cmd *cobra.Command, cfg *config.CacheConfig) error {
	if cmd.Flags().Changed("backend") {
		if err := cfg.Backend.UnmarshalText([]byte(f.Backend)); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("db") {
		cfg.SQLitePath = f.Database
	}
	if cmd.Flags().Changed("redis") {
		cfg.RedisAddr = f.RedisAddr
	}
	return nil
}

// openCache opens the configured backend. The returned closer releases it.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.NewMemory(), func() {}, nil

	case config.BackendSQLite:
		slog.Debug("opening sqlite cache", "path", cfg.SQLitePath)
		st, err := sqlitecache.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				slog.Error("error closing database", "error", err)
			}
		}, nil

	case config.BackendRedis:
		slog.Debug("connecting to redis cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		st, err := rediscache.Dial(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				slog.Error("error closing redis client", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// failWith reports err through the formatter and maps it to ExitFailure.
// The returned error is marked reported when the formatter printed it.
func failWith(formatter *OutputFormatter, message string, err error) error {
	exitErr := WrapExitError(ExitFailure, message, err)
	exitErr.Reported = formatter.Error(string(status.KindOf(err)), err.Error(), nil) == nil
	return exitErr
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
