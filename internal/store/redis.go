package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
)

// Snapshot is the JSON document written to Redis.
type Snapshot struct {
	PublishedAt time.Time      `json:"published_at"`
	Count       int            `json:"count"`
	Records     []cycle.Record `json:"records"`
}

// kv is the subset of the Redis client the publisher uses.
type kv interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisPublisher writes the latest record set under one key so other
// dashboards can read it without recomputing.
type RedisPublisher struct {
	client kv
	closer func() error
	key    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		MaxRetries: 3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.String("key", cfg.Key))
	return &RedisPublisher{
		client: client,
		closer: client.Close,
		key:    cfg.Key,
		ttl:    cfg.TTL,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Publish implements pipeline.Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, records []cycle.Record) error {
	data, err := json.Marshal(Snapshot{PublishedAt: p.now().UTC(), Count: len(records), Records: records})
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store records in Redis: %w", err)
	}
	p.logger.Debug("Records published", zap.String("key", p.key), zap.Int("records", len(records)), zap.Int("bytes", len(data)))
	return nil
}

// Latest reads back the last published document as raw JSON.
func (p *RedisPublisher) Latest(ctx context.Context) ([]byte, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read records from Redis: %w", err)
	}
	return data, nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
