package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the feed.
type Config struct {
	RPC  RPCConfig  `yaml:"rpc"`
	Log  LogConfig  `yaml:"log"`
	Poll PollConfig `yaml:"poll"`
	API  APIConfig  `yaml:"api"`
}

// RPCConfig holds RPC client configuration.
type RPCConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PollConfig holds ingestion configuration.
type PollConfig struct {
	// Program is the base58 program ID to track.
	Program string `yaml:"program"`
	// Market optionally restricts the feed to a single market.
	Market string `yaml:"market"`
	// Interval is the delay between poll cycles.
	Interval time.Duration `yaml:"interval"`
	// StaleTimeout is how long the pipeline may go without a
	// cursor-advancing cycle before the watchdog restarts it.
	StaleTimeout time.Duration `yaml:"stale_timeout"`
	// StopTimeout bounds the wait for a graceful poller stop.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// RestartBackoff is the minimum delay between pipeline restarts.
	RestartBackoff time.Duration `yaml:"restart_backoff"`
}

// APIConfig holds server configuration for the listener and metrics ports.
type APIConfig struct {
	Host         string `yaml:"host"`
	ListenerPort int    `yaml:"listener_port"`
	MetricsPort  int    `yaml:"metrics_port"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration.
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = 30 * time.Second
	}
	if c.RPC.RequestsPerSecond == 0 {
		c.RPC.RequestsPerSecond = 10
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = 10 * time.Second
	}
	if c.Poll.StaleTimeout == 0 {
		c.Poll.StaleTimeout = 2 * time.Minute
	}
	if c.Poll.StopTimeout == 0 {
		c.Poll.StopTimeout = 30 * time.Second
	}
	if c.Poll.RestartBackoff == 0 {
		c.Poll.RestartBackoff = 5 * time.Second
	}

	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.ListenerPort == 0 {
		c.API.ListenerPort = 8080
	}
	if c.API.MetricsPort == 0 {
		c.API.MetricsPort = 9090
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over file configuration.
func (c *Config) LoadFromEnv() error {
	if endpoint := os.Getenv("FILLFEED_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("FILLFEED_RPC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = duration
	}
	if rps := os.Getenv("FILLFEED_RPC_REQUESTS_PER_SECOND"); rps != "" {
		val, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_RPC_REQUESTS_PER_SECOND: %w", err)
		}
		c.RPC.RequestsPerSecond = val
	}

	if level := os.Getenv("FILLFEED_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("FILLFEED_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	if program := os.Getenv("FILLFEED_PROGRAM"); program != "" {
		c.Poll.Program = program
	}
	if market := os.Getenv("FILLFEED_MARKET"); market != "" {
		c.Poll.Market = market
	}
	if interval := os.Getenv("FILLFEED_POLL_INTERVAL"); interval != "" {
		duration, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_POLL_INTERVAL: %w", err)
		}
		c.Poll.Interval = duration
	}
	if staleTimeout := os.Getenv("FILLFEED_STALE_TIMEOUT"); staleTimeout != "" {
		duration, err := time.ParseDuration(staleTimeout)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_STALE_TIMEOUT: %w", err)
		}
		c.Poll.StaleTimeout = duration
	}

	if host := os.Getenv("FILLFEED_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("FILLFEED_LISTENER_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_LISTENER_PORT: %w", err)
		}
		c.API.ListenerPort = val
	}
	if port := os.Getenv("FILLFEED_METRICS_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid FILLFEED_METRICS_PORT: %w", err)
		}
		c.API.MetricsPort = val
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.RPC.RequestsPerSecond <= 0 {
		return fmt.Errorf("RPC requests per second must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Poll.Program == "" {
		return fmt.Errorf("program ID is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Poll.StaleTimeout <= c.Poll.Interval {
		return fmt.Errorf("stale timeout must exceed the poll interval")
	}
	if c.Poll.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive")
	}

	if c.API.ListenerPort == c.API.MetricsPort {
		return fmt.Errorf("listener and metrics ports must differ")
	}

	return nil
}

// Load loads configuration in the following order:
// 1. Load from file (if provided)
// 2. Load from environment variables (override file)
// 3. Set defaults for any missing values
// 4. Validate
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
