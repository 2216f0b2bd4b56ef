package lock

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tally/internal/config"
)

// NewRedisClient builds the shared redis client. Deployments without redis
// leave REDIS_ADDR empty and get a nil client, which disables locking.
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}
