package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"Probekit/internal/config"

	"github.com/redis/go-redis/v9"
)

type redisQueue struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisQueue(cfg *config.RedisConfig, log *slog.Logger) (Queue, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "addr", client.Options().Addr, "error", err)
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Debug("connected to Redis", "addr", client.Options().Addr)
	return &redisQueue{client: client, log: log}, nil
}

// encodePayload passes bytes and strings through and marshals anything else.
func encodePayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		return data, nil
	}
}

func (r *redisQueue) Push(ctx context.Context, list string, payload interface{}) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}

	r.log.Debug("pushing to Redis list", "list", list, "length", len(data))

	// bytes keep Redis from interpreting the document
	if err := r.client.LPush(ctx, list, data).Err(); err != nil {
		return fmt.Errorf("redis LPUSH %s failed: %w", list, err)
	}
	return nil
}

func (r *redisQueue) Close() error {
	return r.client.Close()
}
