package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
)

// Redis stores credentials as a JSON value under keyPrefix+profile.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig, profile string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisWithClient(client, cfg.KeyPrefix, profile), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, keyPrefix, profile string) *Redis {
	if keyPrefix == "" {
		keyPrefix = config.DefaultRedisKeyPrefix
	}
	return &Redis{client: client, key: keyPrefix + profile}
}

func (r *Redis) Load(ctx context.Context) (auth.Credentials, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.Credentials{}, ErrNotFound
		}
		return auth.Credentials{}, fmt.Errorf("redis get: %w", err)
	}

	var creds auth.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return auth.Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}

func (r *Redis) Save(ctx context.Context, creds auth.Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
