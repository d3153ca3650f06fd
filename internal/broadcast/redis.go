// Package broadcast pushes snapshots to Redis subscribers and WebSocket clients.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return rdb, nil
}

// RedisPublisher stores the latest snapshot under a key and announces it on
// a Pub/Sub channel. It implements dashboard.Sink.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
	key     string
	logger  *zap.Logger
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(client redis.Cmdable, channel, key string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		key:     key,
		logger:  logger,
	}
}

// Name implements dashboard.Sink.
func (p *RedisPublisher) Name() string { return "redis" }

// Publish writes the snapshot to the key and channel in one transaction, so
// a subscriber that reads the key after a notification never sees an older
// snapshot.
func (p *RedisPublisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, payload, 0)
		pipe.Publish(ctx, p.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish snapshot to redis: %w", err)
	}

	p.logger.Debug("snapshot published",
		zap.String("channel", p.channel),
		zap.Int("bytes", len(payload)))
	return nil
}

// Latest reads the last published snapshot. Returns redis.Nil when nothing
// was published yet.
func (p *RedisPublisher) Latest(ctx context.Context) (*domain.Snapshot, error) {
	payload, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
