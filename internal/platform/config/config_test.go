package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "http", cfg.Health.Probe)
	assert.Equal(t, "@every 30s", cfg.Health.Schedule)
	assert.Equal(t, 5*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, 8, cfg.Health.SweepConcurrency)
	assert.False(t, cfg.Transcoder.Enabled)
}

func TestLoad_env_overrides(t *testing.T) {
	t.Setenv("CAMRELAY_SERVER_PORT", "9090")
	t.Setenv("CAMRELAY_HEALTH_PROBE", "playlist")
	t.Setenv("CAMRELAY_HEALTH_PROBE_TIMEOUT", "750ms")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "playlist", cfg.Health.Probe)
	assert.Equal(t, 750*time.Millisecond, cfg.Health.ProbeTimeout)
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera-relay.yaml")
	body := "server:\n  port: 7000\nhealth:\n  schedule: \"\"\nrelay:\n  public_base_url: https://relay.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Empty(t, cfg.Health.Schedule)
	assert.Equal(t, "https://relay.example.com", cfg.Relay.PublicBaseURL)
}

func TestLoad_missing_explicit_file(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Relay:    RelayConfig{PublicBaseURL: "http://localhost:8080"},
			Health:   HealthConfig{Probe: "http", ProbeTimeout: time.Second, SweepConcurrency: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"bad_port", func(c *Config) { c.Server.Port = 0 }, false},
		{"bad_driver", func(c *Config) { c.Database.Driver = "oracle" }, false},
		{"relative_base_url", func(c *Config) { c.Relay.PublicBaseURL = "/stream" }, false},
		{"bad_probe", func(c *Config) { c.Health.Probe = "ping" }, false},
		{"zero_probe_timeout", func(c *Config) { c.Health.ProbeTimeout = 0 }, false},
		{"zero_concurrency", func(c *Config) { c.Health.SweepConcurrency = 0 }, false},
		{"transcoder_without_dir", func(c *Config) { c.Transcoder.Enabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAMRELAY_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CAMRELAY_TEST_DOTENV") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("CAMRELAY_TEST_DOTENV"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
