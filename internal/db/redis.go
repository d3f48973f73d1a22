package db

import (
	"github.com/go-redis/redis/v8"

	"github.com/pipetrail/pipetrail/internal/config"
)

// InitRedis builds the client for the optional recents cache. Returns nil
// when the cache is disabled.
func InitRedis(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
}
