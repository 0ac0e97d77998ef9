package database

import (
	"context"
	"fmt"

	"unimarket/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis holds one client per logical database: Cache for rate limits and reset tokens,
// Socket for the socket.io adapter.
type Redis struct {
	Cache  *redis.Client
	Socket *redis.Client
}

func RedisConnect(ctx context.Context, cfg config.Redis, log *zap.SugaredLogger) (*Redis, error) {
	newClient := func(db int) *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       db,
		})
	}

	r := &Redis{Cache: newClient(cfg.DB), Socket: newClient(cfg.SocketDB)}
	if err := r.Cache.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	log.Infow("connections opened to redis", "db", cfg.DB, "socketDb", cfg.SocketDB)
	return r, nil
}

func (r *Redis) Close() error {
	if err := r.Socket.Close(); err != nil {
		return err
	}
	return r.Cache.Close()
}
