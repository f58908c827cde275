package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/compat"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/internal/logging"
	"github.com/conduit-lang/reshape/internal/plan"
	"github.com/conduit-lang/reshape/internal/profile"
	"github.com/conduit-lang/reshape/internal/stream"
)

// FileName is the config file looked up in the working directory, without
// extension
const FileName = "reshape"

// EnvPrefix prefixes every environment override, e.g. RESHAPE_STREAM_ERROR_MODE
const EnvPrefix = "RESHAPE"

// Config represents the reshape CLI configuration
type Config struct {
	CollisionPolicy string        `mapstructure:"collision_policy"`
	Trace           bool          `mapstructure:"trace"`
	TargetVersion   string        `mapstructure:"target_version"`
	Stream          StreamConfig  `mapstructure:"stream"`
	Format          FormatConfig  `mapstructure:"format"`
	Log             LogConfig     `mapstructure:"log"`
	Cache           CacheConfig   `mapstructure:"cache"`
	Profile         ProfileConfig `mapstructure:"profile"`
}

// StreamConfig represents streaming defaults
type StreamConfig struct {
	ErrorMode   string `mapstructure:"error_mode"`
	InputKind   string `mapstructure:"input_kind"`
	XMLItemPath string `mapstructure:"xml_item_path"`
}

// FormatConfig represents formatter defaults
type FormatConfig struct {
	Pretty     bool `mapstructure:"pretty"`
	IndentSize int  `mapstructure:"indent_size"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// CacheConfig represents plan cache configuration
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// ProfileConfig represents profiler defaults
type ProfileConfig struct {
	Iterations       int `mapstructure:"iterations"`
	WarmupIterations int `mapstructure:"warmup_iterations"`
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("collision_policy", string(evaluator.LastWriteWins))
	v.SetDefault("trace", false)
	v.SetDefault("target_version", compat.EngineVersion)
	v.SetDefault("stream.error_mode", string(stream.ContinueWithReport))
	v.SetDefault("stream.input_kind", string(stream.NDJSON))
	v.SetDefault("stream.xml_item_path", "")
	v.SetDefault("format.pretty", true)
	v.SetDefault("format.indent_size", 2)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("cache.size", plan.DefaultCacheSize)
	v.SetDefault("profile.iterations", profile.DefaultConfig().Iterations)
	v.SetDefault("profile.warmup_iterations", profile.DefaultConfig().WarmupIterations)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from reshape.yml or reshape.yaml in the
// working directory, falling back to defaults
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile loads the configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := evaluator.ParseCollisionPolicy(cfg.CollisionPolicy); err != nil {
		return fmt.Errorf("collision_policy: %w", err)
	}
	if _, ok := compat.Canonical(cfg.TargetVersion); !ok {
		return fmt.Errorf("target_version must be a semantic version, got: %s", cfg.TargetVersion)
	}
	if _, ok := stream.ParseErrorMode(cfg.Stream.ErrorMode); !ok {
		return fmt.Errorf("stream.error_mode must be %s or %s, got: %s", stream.ContinueWithReport, stream.FailFast, cfg.Stream.ErrorMode)
	}
	if _, ok := stream.ParseInputKind(cfg.Stream.InputKind); !ok {
		return fmt.Errorf("stream.input_kind is not supported: %s", cfg.Stream.InputKind)
	}
	if cfg.Format.IndentSize < 1 || cfg.Format.IndentSize > 8 {
		return fmt.Errorf("format.indent_size must be between 1 and 8, got: %d", cfg.Format.IndentSize)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be positive, got: %d", cfg.Cache.Size)
	}
	if cfg.Profile.Iterations < 1 {
		return fmt.Errorf("profile.iterations must be positive, got: %d", cfg.Profile.Iterations)
	}
	if cfg.Profile.WarmupIterations < 0 {
		return fmt.Errorf("profile.warmup_iterations cannot be negative, got: %d", cfg.Profile.WarmupIterations)
	}
	return nil
}

// Evaluation returns the evaluator options the config describes
func (c *Config) Evaluation(log *zap.Logger) evaluator.Options {
	policy, _ := evaluator.ParseCollisionPolicy(c.CollisionPolicy)
	return evaluator.Options{
		CollisionPolicy: policy,
		Trace:           c.Trace,
		Logger:          log,
	}
}

// StreamOptions returns the streaming options the config describes
func (c *Config) StreamOptions(log *zap.Logger) stream.Options {
	kind, _ := stream.ParseInputKind(c.Stream.InputKind)
	mode, _ := stream.ParseErrorMode(c.Stream.ErrorMode)
	return stream.Options{
		InputKind:   kind,
		ErrorMode:   mode,
		XMLItemPath: c.Stream.XMLItemPath,
		Evaluation:  c.Evaluation(log),
		Logger:      log,
	}
}

// FormatterConfig returns the formatter settings; a .reshape-format.yml next
// to the rules takes precedence over these
func (c *Config) FormatterConfig() *format.Config {
	return &format.Config{
		IndentSize: c.Format.IndentSize,
		Compact:    !c.Format.Pretty,
	}
}

// Logging returns the logger settings
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Development: c.Log.Development}
}

// ProfileConfig returns the profiler settings
func (c *Config) ProfileConfig(log *zap.Logger) *profile.Config {
	return &profile.Config{
		Iterations:       c.Profile.Iterations,
		WarmupIterations: c.Profile.WarmupIterations,
		Evaluation:       c.Evaluation(log),
		Logger:           log,
	}
}
