package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.RPC.Endpoint = "https://rpc.example.com"
	cfg.Poll.Program = "MNFSTqtC93rEfYHB6hF82sKdZpUDFWkViLByLd1k1Ms"
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 30*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, float64(10), cfg.RPC.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RPC.Burst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Poll.StaleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Poll.StopTimeout)
	assert.Equal(t, 5*time.Second, cfg.Poll.RestartBackoff)
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 8080, cfg.API.ListenerPort)
	assert.Equal(t, 9090, cfg.API.MetricsPort)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FILLFEED_RPC_ENDPOINT", "https://rpc.example.com")
	t.Setenv("FILLFEED_RPC_TIMEOUT", "5s")
	t.Setenv("FILLFEED_RPC_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("FILLFEED_LOG_LEVEL", "debug")
	t.Setenv("FILLFEED_LOG_FORMAT", "console")
	t.Setenv("FILLFEED_PROGRAM", "prog")
	t.Setenv("FILLFEED_MARKET", "mkt")
	t.Setenv("FILLFEED_POLL_INTERVAL", "3s")
	t.Setenv("FILLFEED_STALE_TIMEOUT", "1m")
	t.Setenv("FILLFEED_API_HOST", "127.0.0.1")
	t.Setenv("FILLFEED_LISTENER_PORT", "7070")
	t.Setenv("FILLFEED_METRICS_PORT", "7071")

	cfg := &Config{}
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://rpc.example.com", cfg.RPC.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, 2.5, cfg.RPC.RequestsPerSecond)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "prog", cfg.Poll.Program)
	assert.Equal(t, "mkt", cfg.Poll.Market)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.Equal(t, time.Minute, cfg.Poll.StaleTimeout)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 7070, cfg.API.ListenerPort)
	assert.Equal(t, 7071, cfg.API.MetricsPort)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad timeout", key: "FILLFEED_RPC_TIMEOUT", value: "soon"},
		{name: "bad rps", key: "FILLFEED_RPC_REQUESTS_PER_SECOND", value: "fast"},
		{name: "bad interval", key: "FILLFEED_POLL_INTERVAL", value: "often"},
		{name: "bad stale timeout", key: "FILLFEED_STALE_TIMEOUT", value: "never"},
		{name: "bad listener port", key: "FILLFEED_LISTENER_PORT", value: "eighty"},
		{name: "bad metrics port", key: "FILLFEED_METRICS_PORT", value: "ninety"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := &Config{}
			assert.Error(t, cfg.LoadFromEnv())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
rpc:
  endpoint: https://rpc.example.com
  timeout: 15s
poll:
  program: prog
  market: mkt
  interval: 7s
api:
  listener_port: 7070
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := &Config{}
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://rpc.example.com", cfg.RPC.Endpoint)
	assert.Equal(t, 15*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, "prog", cfg.Poll.Program)
	assert.Equal(t, "mkt", cfg.Poll.Market)
	assert.Equal(t, 7*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 7070, cfg.API.ListenerPort)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestEnvOverridesFile(t *testing.T) {
	content := `
rpc:
  endpoint: https://file.example.com
poll:
  program: prog
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("FILLFEED_RPC_ENDPOINT", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.RPC.Endpoint)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing endpoint", mutate: func(c *Config) { c.RPC.Endpoint = "" }},
		{name: "missing program", mutate: func(c *Config) { c.Poll.Program = "" }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.Interval = 0 }},
		{name: "stale timeout below interval", mutate: func(c *Config) {
			c.Poll.Interval = time.Minute
			c.Poll.StaleTimeout = 30 * time.Second
		}},
		{name: "zero stop timeout", mutate: func(c *Config) { c.Poll.StopTimeout = 0 }},
		{name: "port collision", mutate: func(c *Config) {
			c.API.ListenerPort = 9090
			c.API.MetricsPort = 9090
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRequiresEndpoint(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
