package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/api"
	"github.com/0xvega/fillfeed/client"
	"github.com/0xvega/fillfeed/dispatch"
	"github.com/0xvega/fillfeed/internal/config"
	"github.com/0xvega/fillfeed/internal/logger"
	"github.com/0xvega/fillfeed/poll"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion  = flag.Bool("version", false, "Show version information and exit")
		rpcEndpoint  = flag.String("rpc", "", "Ledger RPC endpoint URL")
		program      = flag.String("program", "", "Program ID to track")
		market       = flag.String("market", "", "Restrict the feed to one market")
		pollInterval = flag.Duration("poll-interval", 0, "Delay between poll cycles")
		staleTimeout = flag.Duration("stale-timeout", 0, "Restart the pipeline after this long without updates")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat    = flag.String("log-format", "", "Log format (json, console)")
		listenerPort = flag.Int("listener-port", 0, "Websocket listener port")
		metricsPort  = flag.Int("metrics-port", 0, "Prometheus metrics port")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("fillfeed version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *rpcEndpoint, *program, *market, *pollInterval, *staleTimeout, *logLevel, *logFormat, *listenerPort, *metricsPort)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting fillfeed",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("program", cfg.Poll.Program),
		zap.String("market", cfg.Poll.Market),
		zap.Duration("poll_interval", cfg.Poll.Interval),
		zap.Duration("stale_timeout", cfg.Poll.StaleTimeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// RPC client: endpoint and program are fixed for the process lifetime,
	// so a bad program ID or endpoint fails here instead of in the restart
	// loop.
	rpcClient, err := client.NewClient(&client.Config{
		Endpoint:          cfg.RPC.Endpoint,
		Program:           cfg.Poll.Program,
		Timeout:           cfg.RPC.Timeout,
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		Logger:            logger.WithComponent(log, "client"),
	})
	if err != nil {
		log.Fatal("Failed to create RPC client", zap.Error(err))
	}
	defer rpcClient.Close()

	// Listener and metrics servers outlive pipeline restarts.
	apiServer, err := api.NewServer(&api.Config{
		Host:          cfg.API.Host,
		Port:          cfg.API.ListenerPort,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		WebSocketPath: "/ws",
		Version:       version,
	}, logger.WithComponent(log, "api"))
	if err != nil {
		log.Fatal("Failed to create listener server", zap.Error(err))
	}
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("Listener server failed", zap.Error(err))
		}
	}()

	metricsServer := api.NewMetricsServer(cfg.API.Host, cfg.API.MetricsPort, logger.WithComponent(log, "metrics"))
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Metrics are registered once; pollers created across restarts share
	// them.
	pollMetrics := poll.NewMetrics(prometheus.DefaultRegisterer)
	sink := dispatch.NewPromSink(prometheus.DefaultRegisterer)
	dispatcher := dispatch.New(sink, apiServer.Hub(), logger.WithComponent(log, "dispatch"))

	// The pipeline restarts forever; only a failed stop is fatal.
	b := &backoff.Backoff{
		Min:    cfg.Poll.RestartBackoff,
		Max:    10 * cfg.Poll.RestartBackoff,
		Factor: 2,
		Jitter: true,
	}
	for {
		started := time.Now()
		err := runPipeline(ctx, cfg, rpcClient, dispatcher, pollMetrics, log)
		if errors.Is(err, context.Canceled) {
			break
		}

		// A pipeline that ran for a while before failing resets the
		// backoff; only rapid-fire failures escalate the delay.
		if time.Since(started) > cfg.Poll.StaleTimeout {
			b.Reset()
		}

		delay := b.Duration()
		log.Error("Pipeline failed, restarting",
			zap.Error(err),
			zap.Duration("backoff", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop listener server gracefully", zap.Error(err))
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop metrics server gracefully", zap.Error(err))
	}

	log.Info("fillfeed stopped")
}

// runPipeline runs one pipeline incarnation: a fresh poller and watchdog
// over the shared RPC client and dispatcher. It returns when either fails
// or the context is cancelled. A poller that cannot be stopped within the
// configured timeout is fatal: its goroutine may still hold the RPC
// connection, and restarting alongside it would double-process.
func runPipeline(ctx context.Context, cfg *config.Config, rpcClient *client.Client, dispatcher *dispatch.Dispatcher, metrics *poll.Metrics, log *zap.Logger) error {
	poller, err := poll.New(rpcClient, dispatcher, &poll.Config{
		Interval:   cfg.Poll.Interval,
		DedupLimit: 1000,
		Market:     cfg.Poll.Market,
	}, metrics, logger.WithComponent(log, "poll"))
	if err != nil {
		return fmt.Errorf("create poller: %w", err)
	}

	watchdog := poll.NewWatchdog(poller, cfg.Poll.StaleTimeout, logger.WithComponent(log, "watchdog"))

	pipelineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	go func() { errChan <- poller.Run(pipelineCtx) }()
	go func() { errChan <- watchdog.Run(pipelineCtx) }()

	runErr := <-errChan

	// Cooperative stop: waits out the current batch, does not cancel the
	// in-flight fetch.
	if err := poller.StopAndWait(cfg.Poll.StopTimeout); err != nil {
		log.Fatal("Failed to stop poller", zap.Error(err))
	}

	return runErr
}

// loadConfig loads configuration from .env, file and environment variables.
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration.
func applyFlags(cfg *config.Config, rpcEndpoint, program, market string, pollInterval, staleTimeout time.Duration, logLevel, logFormat string, listenerPort, metricsPort int) {
	if rpcEndpoint != "" {
		cfg.RPC.Endpoint = rpcEndpoint
	}
	if program != "" {
		cfg.Poll.Program = program
	}
	if market != "" {
		cfg.Poll.Market = market
	}
	if pollInterval > 0 {
		cfg.Poll.Interval = pollInterval
	}
	if staleTimeout > 0 {
		cfg.Poll.StaleTimeout = staleTimeout
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if listenerPort > 0 {
		cfg.API.ListenerPort = listenerPort
	}
	if metricsPort > 0 {
		cfg.API.MetricsPort = metricsPort
	}
}

// initLogger initializes the logger based on configuration.
func initLogger(level, format string) (*zap.Logger, error) {
	if format == "json" {
		return logger.NewProduction()
	}

	cfg := logger.Config{
		Level:       level,
		Encoding:    "console",
		Development: true,
	}
	return logger.NewWithConfig(&cfg)
}
