// Package config provides configuration for locusflow.
// Priority: defaults < file < env
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/locusflow/locusflow/pkg/errors"
)

// Config holds all locusflow configuration. It is an explicit struct handed
// to constructors; nothing reads it through process-wide state.
type Config struct {
	Version int `yaml:"version"`

	Source    SourceConfig    `yaml:"source"`
	Streams   StreamsConfig   `yaml:"streams"`
	Driver    DriverConfig    `yaml:"driver"`
	Commit    CommitConfig    `yaml:"commit"`
	Redis     RedisConfig     `yaml:"redis"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig selects the upstream locus data source.
type SourceConfig struct {
	Kind string `yaml:"kind"` // duckdb | memory
	Path string `yaml:"path"` // duckdb database path
}

// StreamsConfig lists the valid output stream destinations.
type StreamsConfig struct {
	Names []string `yaml:"names"`
}

// DriverConfig controls filter invocation.
type DriverConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-invocation budget, 0 = none
	Workers int           `yaml:"workers"` // batch concurrency, 0 = auto
}

// CommitConfig controls how committed reports are applied.
type CommitConfig struct {
	PropertyStore string `yaml:"property_store"` // log | redis
	Publisher     string `yaml:"publisher"`      // log | redis
}

// RedisConfig for stream delivery and property persistence.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

// ArchiveConfig for S3 run archival.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
	// Endpoint overrides the default S3 endpoint (for MinIO, LocalStack)
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig for the HTTP API.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// TelemetryConfig for optional OTLP tracing.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	// SamplingRatio is the fraction of traces to sample (0.0 to 1.0)
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// LoggingConfig for the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Source: SourceConfig{
			Kind: "duckdb",
			Path: "loci.duckdb",
		},
		Streams: StreamsConfig{
			Names: []string{"high_snr", "extragalactic", "high_amplitude"},
		},
		Driver: DriverConfig{
			Timeout: 30 * time.Second,
			Workers: 0, // auto
		},
		Commit: CommitConfig{
			PropertyStore: "log",
			Publisher:     "log",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Archive: ArchiveConfig{
			Prefix: "runs/",
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			SamplingRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfig, "failed to read config").
				WithContext("path", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeConfig, "failed to parse config").
				WithContext("path", path)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv applies LOCUSFLOW_* environment overrides.
func (c *Config) loadEnv() {
	if v := os.Getenv("LOCUSFLOW_SOURCE_PATH"); v != "" {
		c.Source.Path = v
	}
	if v := os.Getenv("LOCUSFLOW_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("LOCUSFLOW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LOCUSFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOCUSFLOW_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "duckdb", "memory":
	default:
		return errors.New(errors.CodeConfig, "unknown source kind").
			WithContext("kind", c.Source.Kind)
	}
	if c.Source.Kind == "duckdb" && c.Source.Path == "" {
		return errors.New(errors.CodeConfig, "duckdb source requires a path")
	}

	for _, section := range []struct {
		name, value string
	}{
		{"commit.property_store", c.Commit.PropertyStore},
		{"commit.publisher", c.Commit.Publisher},
	} {
		switch section.value {
		case "log", "redis", "":
		default:
			return errors.New(errors.CodeConfig, "unknown backend").
				WithContext("section", section.name).
				WithContext("value", section.value)
		}
	}

	if c.Driver.Timeout < 0 {
		return errors.New(errors.CodeConfig, "driver timeout must be non-negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New(errors.CodeConfig, "server port out of range").
			WithContext("port", c.Server.Port)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New(errors.CodeConfig, "archive requires a bucket")
	}
	return nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfig, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.CodeConfig, "failed to write config").
			WithContext("path", path)
	}
	return nil
}

// Addr returns the server listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
