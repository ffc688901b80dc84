package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
)

// publishClient is the subset of *redis.Client the publisher needs.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher sends every snapshot as a JSON ServerMessage on one pub/sub
// channel.
type RedisPublisher struct {
	client  publishClient
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, snap lobby.Snapshot) error {
	payload, err := json.Marshal(snap.Message())
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.String("addr", opts.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	return rdb, nil
}
