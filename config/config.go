// Package config loads client settings from defaults, an optional file and MIGRATE_
// environment variables, and resolves network names to endpoints.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenmigration/cache"
	"tokenmigration/observability"
	"tokenmigration/solprogram"
)

// EnvPrefix is prepended to every environment override, e.g. MIGRATE_RPC_URL.
const EnvPrefix = "MIGRATE"

// Config is the full client configuration.
type Config struct {
	Network   string         `mapstructure:"network"`
	RPCURL    string         `mapstructure:"rpc_url"`
	ProgramID string         `mapstructure:"program_id"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Throttle  ThrottleConfig `mapstructure:"throttle"`
	Watch     WatchConfig    `mapstructure:"watch"`
	Log       LogConfig      `mapstructure:"log"`
	HTTP      HTTPConfig     `mapstructure:"http"`
}

// CacheConfig sets entry lifetimes and the per-cache size bound.
type CacheConfig struct {
	ProjectTTL    time.Duration `mapstructure:"project_ttl"`
	BalanceTTL    time.Duration `mapstructure:"balance_ttl"`
	UserRecordTTL time.Duration `mapstructure:"user_record_ttl"`
	Capacity      int           `mapstructure:"capacity"`
}

// ThrottleConfig paces ledger calls.
type ThrottleConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// WatchConfig sets the balance watcher's default interval.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig selects the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig is the listen address for the serve command.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", solprogram.NetworkDevnet)
	v.SetDefault("rpc_url", "")
	v.SetDefault("program_id", "")

	v.SetDefault("cache.project_ttl", solprogram.DefaultProjectTTL)
	v.SetDefault("cache.balance_ttl", solprogram.DefaultBalanceTTL)
	v.SetDefault("cache.user_record_ttl", solprogram.DefaultUserRecordTTL)
	v.SetDefault("cache.capacity", cache.DefaultCapacity)

	v.SetDefault("throttle.min_interval", solprogram.DefaultMinInterval)
	v.SetDefault("watch.interval", solprogram.DefaultPollInterval)

	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
}

// Load reads configuration in priority order: defaults, the file at path (skipped when
// path is empty), then MIGRATE_ environment variables with dots as underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var errs []error
	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if c.Cache.ProjectTTL < 0 || c.Cache.BalanceTTL < 0 || c.Cache.UserRecordTTL < 0 {
		errs = append(errs, errors.New("cache TTLs must not be negative"))
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity))
	}
	if c.Throttle.MinInterval < 0 {
		errs = append(errs, errors.New("throttle.min_interval must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Resolver returns a resolver with this config's rpc_url and program_id applied as
// overrides for its network.
func (c *Config) Resolver() *Resolver {
	return NewResolver(map[string]Endpoint{
		c.Network: {RPCURL: c.RPCURL, ProgramID: c.ProgramID},
	})
}

// ClientOptions converts the cache, throttle and watch settings into client options.
func (c *Config) ClientOptions(logger *zap.Logger, metrics *observability.Metrics) []solprogram.Option {
	opts := []solprogram.Option{
		solprogram.WithLogger(logger),
		solprogram.WithTTLs(c.Cache.ProjectTTL, c.Cache.BalanceTTL, c.Cache.UserRecordTTL),
		solprogram.WithMinInterval(c.Throttle.MinInterval),
		solprogram.WithPollInterval(c.Watch.Interval),
	}
	if c.Cache.Capacity > 0 {
		opts = append(opts, solprogram.WithCacheCapacity(c.Cache.Capacity))
	}
	if metrics != nil {
		opts = append(opts, solprogram.WithMetrics(metrics))
	}
	return opts
}

// NewLogger builds a production zap logger at the configured level. Debug level uses
// the development encoder.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
