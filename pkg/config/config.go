// Package config loads importsplit settings from defaults, an optional
// YAML file and IMPORTSPLIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("transform workers must not be negative")
	ErrInvalidMaxFileSize = errors.New("invalid transform max file size")
	ErrInvalidSampleRatio = errors.New("telemetry sample ratio must be within [0, 1]")
	ErrInvalidLogLevel    = errors.New("invalid logging level")
	ErrInvalidLogFormat   = errors.New("invalid logging format")
	ErrNoTargets          = errors.New("rewrite targets must not be empty")
	ErrInvalidCacheSize   = errors.New("invalid cache max size")
)

// Default configuration values.
const (
	defaultPort        = 8080
	defaultHost        = "127.0.0.1"
	defaultMaxFileSize = "1MB"
	defaultCacheSize   = "32MB"
	defaultTarget      = "lodash"
	maxPort            = 65535

	envPrefix  = "IMPORTSPLIT"
	configName = ".importsplit"

	// LogFormatText and LogFormatJSON are the accepted logging.format values.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultExtensions are the file extensions collected by directory walks.
var DefaultExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// Config holds all importsplit configuration.
type Config struct {
	Rewrite   RewriteConfig   `mapstructure:"rewrite"`
	Transform TransformConfig `mapstructure:"transform"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// RewriteConfig selects what the engine rewrites.
type RewriteConfig struct {
	Targets []string `mapstructure:"targets"`
	Dialect string   `mapstructure:"dialect"`
}

// TransformConfig tunes batch runs over files and directories.
type TransformConfig struct {
	MaxFileSize string   `mapstructure:"max_file_size"`
	Extensions  []string `mapstructure:"extensions"`
	Workers     int      `mapstructure:"workers"`
	SkipVendor  bool     `mapstructure:"skip_vendor"`

	// MaxFileSizeBytes is MaxFileSize parsed during validation.
	MaxFileSizeBytes uint64 `mapstructure:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// CacheConfig sizes the result cache of long-running hosts (serve, mcp).
type CacheConfig struct {
	MaxSize string `mapstructure:"max_size"`
	Enabled bool   `mapstructure:"enabled"`

	// MaxSizeBytes is MaxSize parsed during validation.
	MaxSizeBytes int64 `mapstructure:"-"`
}

// Addr returns the host:port the server listens on.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// SlogLevel converts the configured level name.
func (lc LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(lc.Level))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// Load reads configuration. An empty configPath searches for
// .importsplit.yaml in the working directory and $HOME and tolerates its
// absence; an explicit path must exist.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		var missing viper.ConfigFileNotFoundError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// newViper layers the defaults, the config file and IMPORTSPLIT_* variables.
func newViper(configPath string) *viper.Viper {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	switch {
	case configPath != "":
		v.SetConfigFile(configPath)
	default:
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

//nolint:gochecknoglobals // default table.
var defaults = map[string]any{
	"rewrite.targets": []string{defaultTarget},
	"rewrite.dialect": string(jsimport.DialectTypeScript),

	"transform.workers":       0,
	"transform.max_file_size": defaultMaxFileSize,
	"transform.skip_vendor":   true,
	"transform.extensions":    DefaultExtensions,

	"server.host":          defaultHost,
	"server.port":          defaultPort,
	"server.read_timeout":  "10s",
	"server.write_timeout": "30s",
	"server.idle_timeout":  "60s",

	"logging.level":  "info",
	"logging.format": LogFormatText,

	"telemetry.otlp_endpoint": "",
	"telemetry.otlp_headers":  "",
	"telemetry.otlp_insecure": false,
	"telemetry.sample_ratio":  0.0,
	"telemetry.environment":   "",

	"cache.enabled":  true,
	"cache.max_size": defaultCacheSize,
}

// Validate checks every section and fills derived fields.
func (cfg *Config) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	if cfg.Transform.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Transform.Workers)
	}

	size, err := humanize.ParseBytes(cfg.Transform.MaxFileSize)
	if err == nil {
		_, err = safecast.Conv[int64](size)
	}

	if err != nil || size == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, cfg.Transform.MaxFileSize)
	}

	cfg.Transform.MaxFileSizeBytes = size

	cacheSize, err := humanize.ParseBytes(cfg.Cache.MaxSize)
	if err == nil {
		cfg.Cache.MaxSizeBytes, err = safecast.Conv[int64](cacheSize)
	}

	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCacheSize, cfg.Cache.MaxSize)
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, cfg.Telemetry.SampleRatio)
	}

	var level slog.Level

	levelErr := level.UnmarshalText([]byte(cfg.Logging.Level))
	if levelErr != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Logging.Level)
	}

	if cfg.Logging.Format != LogFormatText && cfg.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format)
	}

	_, dialectErr := jsimport.ParseDialect(cfg.Rewrite.Dialect)
	if dialectErr != nil {
		return fmt.Errorf("rewrite dialect: %w", dialectErr)
	}

	if !hasTarget(cfg.Rewrite.Targets) {
		return ErrNoTargets
	}

	return nil
}

func hasTarget(targets []string) bool {
	for _, target := range targets {
		if strings.TrimSpace(target) != "" {
			return true
		}
	}

	return false
}
