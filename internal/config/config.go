// Package config loads runtime settings from defaults, an optional YAML file
// and CRYPTOVERSE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "CRYPTOVERSE"

	DefaultAPIURL         = "http://localhost:8080"
	DefaultBackend        = BackendSQLite
	DefaultSQLitePath     = "cryptoverse.db"
	DefaultRedisAddr      = "127.0.0.1:6379"
	DefaultRedisPrefix    = "cryptoverse:"
	DefaultPollInterval   = time.Minute
	DefaultRequestTimeout = 30 * time.Second
)

// Backend names a cache.Cache implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Backends lists the accepted backend names.
var Backends = []Backend{BackendMemory, BackendSQLite, BackendRedis}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown names.
func (b *Backend) UnmarshalText(text []byte) error {
	name := Backend(strings.ToLower(strings.TrimSpace(string(text))))
	for _, known := range Backends {
		if name == known {
			*b = name
			return nil
		}
	}
	return fmt.Errorf("unknown cache backend %q (want memory, sqlite or redis)", string(text))
}

// String implements fmt.Stringer.
func (b Backend) String() string {
	return string(b)
}

// Durable reports whether the backend outlives the process.
func (b Backend) Durable() bool {
	return b != BackendMemory
}

var DefaultConfig = Config{
	APIURL: DefaultAPIURL,
	Cache: CacheConfig{
		Backend:     DefaultBackend,
		SQLitePath:  DefaultSQLitePath,
		RedisAddr:   DefaultRedisAddr,
		RedisPrefix: DefaultRedisPrefix,
	},
	PollInterval:   DefaultPollInterval,
	RequestTimeout: DefaultRequestTimeout,
}

type Config struct {
	APIURL            string        `json:"api_url"              yaml:"api_url"              mapstructure:"api_url"`
	Cache             CacheConfig   `json:"cache"                yaml:"cache"                mapstructure:"cache"`
	PollInterval      time.Duration `json:"poll_interval"        yaml:"poll_interval"        mapstructure:"poll_interval"`
	RequestTimeout    time.Duration `json:"request_timeout"      yaml:"request_timeout"      mapstructure:"request_timeout"`
	AbortOnWriteError bool          `json:"abort_on_write_error" yaml:"abort_on_write_error" mapstructure:"abort_on_write_error"`
}

type CacheConfig struct {
	Backend     Backend `json:"backend"      yaml:"backend"      mapstructure:"backend"`
	SQLitePath  string  `json:"sqlite_path"  yaml:"sqlite_path"  mapstructure:"sqlite_path"`
	RedisAddr   string  `json:"redis_addr"   yaml:"redis_addr"   mapstructure:"redis_addr"`
	RedisPrefix string  `json:"redis_prefix" yaml:"redis_prefix" mapstructure:"redis_prefix"`
	RedisDB     int     `json:"redis_db"     yaml:"redis_db"     mapstructure:"redis_db"`
}

// Load reads configuration. path names an optional YAML file; an empty path
// skips the file.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()

	defaults := map[string]any{
		"api_url":              DefaultConfig.APIURL,
		"cache.backend":        string(DefaultConfig.Cache.Backend),
		"cache.sqlite_path":    DefaultConfig.Cache.SQLitePath,
		"cache.redis_addr":     DefaultConfig.Cache.RedisAddr,
		"cache.redis_prefix":   DefaultConfig.Cache.RedisPrefix,
		"cache.redis_db":       DefaultConfig.Cache.RedisDB,
		"poll_interval":        DefaultConfig.PollInterval,
		"request_timeout":      DefaultConfig.RequestTimeout,
		"abort_on_write_error": DefaultConfig.AbortOnWriteError,
	}
	for key, value := range defaults {
		_ = v.BindEnv(key)
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that decoding alone cannot.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			errs = append(errs, errors.New("cache.sqlite_path is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
		if c.Cache.RedisDB < 0 {
			errs = append(errs, fmt.Errorf("cache.redis_db must not be negative, got %d", c.Cache.RedisDB))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
