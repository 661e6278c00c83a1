// Package config loads backtrans settings from defaults, an optional YAML
// file and BACKTRANS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/cache"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// BACKTRANS_CACHE_BACKEND=memory.
const EnvPrefix = "BACKTRANS"

// ConfigName is the base name of the config file searched for in $HOME and
// the working directory.
const ConfigName = ".backtrans"

// Config is the complete runtime configuration.
type Config struct {
	Provider             string `mapstructure:"provider" yaml:"provider"`
	SourceLanguage       string `mapstructure:"source_language" yaml:"source_language"`
	IntermediateLanguage string `mapstructure:"intermediate_language" yaml:"intermediate_language"`

	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker" yaml:"breaker"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// HTTPConfig configures the unofficial endpoint. Zero values defer to
// TF_UNOFFICIAL_TIMEOUT_SECONDS and TF_UNOFFICIAL_USER_AGENT.
type HTTPConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// RetryConfig mirrors backtrans.RetryPolicy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// RateLimitConfig enables client-side pacing when RequestsPerMinute > 0.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `mapstructure:"burst" yaml:"burst"`
}

// BreakerConfig enables the circuit breaker when ConsecutiveBlocked > 0.
type BreakerConfig struct {
	ConsecutiveBlocked uint32        `mapstructure:"consecutive_blocked" yaml:"consecutive_blocked"`
	Cooldown           time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// CacheConfig selects and configures the translation memory backend.
type CacheConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
	RedisURL   string `mapstructure:"redis_url" yaml:"redis_url"`
	KeyPrefix  string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// OpenAIConfig configures the OpenAI provider. It is registered only when
// APIKey is set.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ServerConfig configures `backtrans serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:             string(backtrans.DefaultProvider),
		SourceLanguage:       "en",
		IntermediateLanguage: "ja",
		Retry: RetryConfig{
			MaxAttempts:  backtrans.DefaultMaxAttempts,
			BaseDelay:    backtrans.DefaultBaseDelay,
			MaxDelay:     backtrans.DefaultMaxDelay,
			PollInterval: backtrans.DefaultPollInterval,
		},
		Breaker: BreakerConfig{
			Cooldown: 60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    BackendSQLite,
			Path:       cache.DefaultSQLitePath(),
			MaxEntries: cache.DefaultMaxEntries,
			KeyPrefix:  "backtrans:",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Option adjusts the viper instance before the config is decoded.
type Option func(*viper.Viper) error

// WithFlags binds command-line flags to config keys. The map goes from
// config key to flag name; flags that do not exist are skipped.
func WithFlags(fs *pflag.FlagSet, keys map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range keys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
		return nil
	}
}

// Load builds the configuration. If path is empty, .backtrans.yaml is
// looked up in $HOME and the working directory and may be absent; an
// explicit path must exist.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables are seen
// by Unmarshal even when no file mentions the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("source_language", d.SourceLanguage)
	v.SetDefault("intermediate_language", d.IntermediateLanguage)

	v.SetDefault("http.endpoint", d.HTTP.Endpoint)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.poll_interval", d.Retry.PollInterval)

	v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)

	v.SetDefault("breaker.consecutive_blocked", d.Breaker.ConsecutiveBlocked)
	v.SetDefault("breaker.cooldown", d.Breaker.Cooldown)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)

	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !backtrans.IsValidLanguageCode(c.SourceLanguage) && c.SourceLanguage != "" {
		return fmt.Errorf("source_language: invalid language code %q", c.SourceLanguage)
	}
	if !backtrans.IsValidLanguageCode(c.IntermediateLanguage) {
		return fmt.Errorf("intermediate_language: invalid language code %q", c.IntermediateLanguage)
	}

	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the sqlite backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}

	if c.Cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("rate_limit.requests_per_minute must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ProviderID returns the canonical provider id.
func (c *Config) ProviderID() backtrans.ProviderID {
	return backtrans.NormalizeProviderID(c.Provider)
}

// RetryPolicy converts the retry section into a normalized policy.
func (c *Config) RetryPolicy() backtrans.RetryPolicy {
	p := backtrans.DefaultRetryPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.BaseDelay = c.Retry.BaseDelay
	p.MaxDelay = c.Retry.MaxDelay
	p.PollInterval = c.Retry.PollInterval
	return p.Normalize()
}

// ParseLevel maps debug|info|warn|error onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
	return level, nil
}

// WriteDefault writes the default configuration as YAML. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
