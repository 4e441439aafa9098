package commit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// LogStore writes committed properties to the structured log. The dry-run
// store for filter development.
type LogStore struct {
	log zerolog.Logger
}

// NewLogStore creates a log-backed property store.
func NewLogStore(log zerolog.Logger) *LogStore {
	return &LogStore{log: log}
}

// Put logs the properties.
func (s *LogStore) Put(_ context.Context, locusID int64, props map[string]model.Value) error {
	ev := s.log.Info().Int64("locus_id", locusID)
	for name, v := range props {
		ev = ev.Interface(name, v.Native())
	}
	ev.Msg("properties committed")
	return nil
}

// Close is a no-op.
func (s *LogStore) Close() error { return nil }

// RedisStore persists committed properties in a Redis hash per locus,
// `<prefix><locus_id>`. Field values are stored in their string rendering.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// RedisStoreConfig configures the Redis property store.
type RedisStoreConfig struct {
	Address  string
	Password string
	Database int

	// Prefix is prepended to hash keys (default "locusflow:locus:").
	Prefix string

	Timeout time.Duration
}

// NewRedisStore creates a Redis property store and verifies connectivity.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "locusflow:locus:"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.CodePropertyStore, "redis connection failed").
			WithContext("address", cfg.Address)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix, timeout: cfg.Timeout}, nil
}

// Put upserts the properties into the locus hash.
func (s *RedisStore) Put(ctx context.Context, locusID int64, props map[string]model.Value) error {
	fields := make(map[string]any, len(props))
	for name, v := range props {
		fields[name] = v.String()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.prefix + strconv.FormatInt(locusID, 10) + ":props"
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return errors.Wrap(err, errors.CodePropertyStore, "redis hset failed").
			WithContext("locus_id", locusID)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
