package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CAMRELAY_SERVER_PORT.
const EnvPrefix = "CAMRELAY"

const (
	defaultPort             = 8080
	defaultShutdownTimeout  = 10 * time.Second
	defaultReadHeader       = 5 * time.Second
	defaultPublicBaseURL    = "http://localhost:8080"
	defaultPersistTimeout   = 5 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultSweepTimeout     = 2 * time.Minute
	defaultSweepConcurrency = 8
	defaultSchedule         = "@every 30s"
)

// Config holds all configuration for the service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Health     HealthConfig     `mapstructure:"health"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// DatabaseConfig selects the camera configuration store backend.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// RelayConfig controls how relay sessions are addressed and persisted.
type RelayConfig struct {
	// PublicBaseURL is the externally reachable base of this service; session
	// relay URIs are built from it.
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// HealthConfig controls the periodic health sweep.
type HealthConfig struct {
	// Schedule is a cron spec ("@every 30s", "*/1 * * * *"). Empty disables sweeping.
	Schedule         string        `mapstructure:"schedule"`
	Probe            string        `mapstructure:"probe"` // http, playlist
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	SweepTimeout     time.Duration `mapstructure:"sweep_timeout"`
	SweepConcurrency int           `mapstructure:"sweep_concurrency"`
}

// TranscoderConfig controls launching of the external ffmpeg process.
type TranscoderConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BinaryPath string `mapstructure:"binary_path"`
	OutputDir  string `mapstructure:"output_dir"`
}

// LoadEnvFile reads a .env file and sets environment variables. If .env does
// not exist, LoadEnvFile returns an error but callers can ignore it and use
// system env or defaults. With no paths, ".env" is used.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// SetDefaults registers every key with its default so env overrides are
// picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.read_header_timeout", defaultReadHeader)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "camera-relay.db")
	v.SetDefault("database.log_level", "silent")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("relay.public_base_url", defaultPublicBaseURL)
	v.SetDefault("relay.persist_timeout", defaultPersistTimeout)

	v.SetDefault("health.schedule", defaultSchedule)
	v.SetDefault("health.probe", "http")
	v.SetDefault("health.probe_timeout", defaultProbeTimeout)
	v.SetDefault("health.sweep_timeout", defaultSweepTimeout)
	v.SetDefault("health.sweep_concurrency", defaultSweepConcurrency)

	v.SetDefault("transcoder.enabled", false)
	v.SetDefault("transcoder.binary_path", "ffmpeg")
	v.SetDefault("transcoder.output_dir", "data/hls")
}

// BindEnv configures v to read CAMRELAY_-prefixed environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from an optional file and the environment.
// Environment variables take precedence over file values. A missing default
// config file is not an error; a missing explicit one is.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("camera-relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/camera-relay")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q unsupported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if u, err := url.Parse(c.Relay.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("relay.public_base_url %q is not an absolute URL", c.Relay.PublicBaseURL))
	}

	switch c.Health.Probe {
	case "http", "playlist":
	default:
		errs = append(errs, fmt.Errorf("health.probe %q unsupported", c.Health.Probe))
	}
	if c.Health.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("health.probe_timeout must be positive"))
	}
	if c.Health.SweepConcurrency < 1 {
		errs = append(errs, errors.New("health.sweep_concurrency must be at least 1"))
	}

	if c.Transcoder.Enabled && c.Transcoder.OutputDir == "" {
		errs = append(errs, errors.New("transcoder.output_dir is required when enabled"))
	}

	return errors.Join(errs...)
}
