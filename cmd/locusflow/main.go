// locusflow - Alert filter execution engine.
// Runs science filters against loci and commits their outputs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/locusflow/locusflow/internal/logger"
	"github.com/locusflow/locusflow/pkg/commit"
	"github.com/locusflow/locusflow/pkg/config"
	"github.com/locusflow/locusflow/pkg/source"
	"github.com/locusflow/locusflow/pkg/streams"
)

var (
	version   = "0.1.0"
	commitSHA = "dev"
)

// CLI flags
var (
	configPath string
	verbose    bool
	sourcePath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "locusflow",
	Short: "LocusFlow - Run alert filters against loci",
	Long: `LocusFlow executes science filters against loci (persistent sky positions
accumulating alert history) and commits their derived properties and
stream routing decisions.

Examples:
  locusflow run --filter high_snr --ids 1,2,3
  locusflow export --locus 42 --fields mag,magerr -o locus42.csv
  locusflow serve --port 8080`,
	Version: fmt.Sprintf("%s (%s)", version, commitSHA),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "source", "", "DuckDB database path (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(filtersCmd)
}

// loadConfig resolves the effective configuration from defaults, the
// optional config file, environment variables, and CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if sourcePath != "" {
		cfg.Source.Kind = "duckdb"
		cfg.Source.Path = sourcePath
	}
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Pretty = true
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
}

func buildSource(cfg *config.Config) (source.LocusSource, error) {
	switch cfg.Source.Kind {
	case "duckdb":
		return source.NewDuckDBSource(cfg.Source.Path)
	case "memory":
		return source.NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func buildRegistry(cfg *config.Config) *streams.Registry {
	return streams.NewRegistry(cfg.Streams.Names...)
}

// buildCommitter wires the property store and stream publisher selected by
// the config. Redis-backed variants connect eagerly so misconfiguration
// fails before any filter runs.
func buildCommitter(cfg *config.Config, registry *streams.Registry, log zerolog.Logger) (*commit.Committer, func(), error) {
	var store commit.PropertyStore
	var publisher streams.Publisher
	var closers []func()

	switch cfg.Commit.PropertyStore {
	case "redis":
		rs, err := commit.NewRedisStore(commit.RedisStoreConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		store = rs
		closers = append(closers, func() { rs.Close() })
	default:
		store = commit.NewLogStore(log)
	}

	switch cfg.Commit.Publisher {
	case "redis":
		rc := streams.DefaultRedisConfig(cfg.Redis.Address)
		rc.Password = cfg.Redis.Password
		rc.Database = cfg.Redis.Database
		rp, err := streams.NewRedisPublisher(rc)
		if err != nil {
			return nil, nil, err
		}
		publisher = rp
		closers = append(closers, func() { rp.Close() })
	default:
		publisher = streams.NewLogPublisher(log)
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return commit.New(registry, store, publisher, log, nil), cleanup, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	return ctx, cancel
}
