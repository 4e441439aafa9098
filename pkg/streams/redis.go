// Redis-backed stream delivery for low-latency fan-out to downstream
// consumers subscribed per stream name.
package streams

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/locusflow/locusflow/pkg/errors"
	"github.com/locusflow/locusflow/pkg/filter"
)

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all channel names (e.g., "locusflow:streams:")
	Prefix string

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int

	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:      address,
		Prefix:       "locusflow:streams:",
		Timeout:      5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisPublisher publishes committed reports to one Redis channel per
// stream name. Consumers subscribe to the channels they care about.
type RedisPublisher struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisPublisher creates a Redis publisher and verifies connectivity.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.CodeDeliveryFailed, "redis connection failed").
			WithContext("address", cfg.Address)
	}

	return &RedisPublisher{cfg: cfg, client: client}, nil
}

// Publish sends the report as JSON to the stream's channel.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, report *filter.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, errors.CodeDeliveryFailed, "report encoding failed").
			WithContext("stream", stream)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.cfg.Prefix+stream, payload).Err(); err != nil {
		return errors.Wrap(err, errors.CodeDeliveryFailed, "redis publish failed").
			WithContext("stream", stream).
			WithContext("locus_id", report.LocusID)
	}
	return nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
