package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/locusflow/locusflow/pkg/config"
	"github.com/locusflow/locusflow/pkg/driver"
	"github.com/locusflow/locusflow/pkg/server"
	"github.com/locusflow/locusflow/pkg/telemetry"
	"github.com/locusflow/locusflow/pkg/watch"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the locusflow HTTP API.

The server provides:
  - Locus inspection (properties, time series, catalog matches)
  - Asynchronous filter runs with per-locus results
  - Stream and filter registries
  - Prometheus metrics at /metrics

When started with --config, the config file is watched and the stream
registry is reloaded on change without restarting the server.

Examples:
  locusflow serve                  # Start on default port (8080)
  locusflow serve --port 3000      # Start on custom port
  locusflow serve -c prod.yaml     # With config file + hot stream reload`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	log := buildLogger(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	// Tracing is opt-in; the driver falls back to a noop tracer otherwise.
	if cfg.Telemetry.Enabled {
		otlp := telemetry.DefaultOTLPConfig("locusflow")
		otlp.Endpoint = cfg.Telemetry.Endpoint
		otlp.SamplingRatio = cfg.Telemetry.SamplingRatio
		shutdown, err := telemetry.InitOTLP(otlp)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			shutdown(shutdownCtx)
		}()
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	registry := buildRegistry(cfg)
	prom := telemetry.NewPromMetrics()

	d := driver.New(src, registry, driver.Config{
		Timeout: cfg.Driver.Timeout,
		Workers: cfg.Driver.Workers,
		Logger:  log,
		Tracer:  telemetry.GlobalTracer("locusflow/driver"),
		Metrics: prom,
	})

	committer, cleanup, err := buildCommitter(cfg, registry, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(d, committer, registry, src, prom, log)

	// Hot-reload the stream registry when the config file changes. Source
	// and commit wiring stay fixed for the process lifetime.
	if configPath != "" {
		watcher, err := watch.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		watcher.OnChange = func(path string) error {
			fresh, err := config.Load(path)
			if err != nil {
				return err
			}
			registry.Replace(fresh.Streams.Names)
			log.Info().Strs("streams", fresh.Streams.Names).Msg("stream registry reloaded")
			return nil
		}
		watcher.OnError = func(path string, err error) {
			log.Warn().Err(err).Str("path", path).Msg("config reload failed")
		}
		if err := watcher.Watch(configPath); err != nil {
			return err
		}
		go watcher.Run(ctx)
	}

	addr := cfg.Server.Addr()
	log.Info().Str("addr", addr).Msg("starting server")
	return srv.ListenAndServe(ctx, addr)
}
