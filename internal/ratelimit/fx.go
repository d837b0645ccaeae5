package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/usagelens/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	loginRatePerSecond = 0.2
	loginBurst         = 5
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewIngestLocker),
	fx.Provide(NewLoginLimiter),
)

// NewRedisClient returns nil when REDIS_ADDR is not configured.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	log.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewIngestLocker(client *redis.Client) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}

func NewLoginLimiter(client *redis.Client) Limiter {
	if client == nil {
		return NewInMemoryLimiter(loginRatePerSecond, loginBurst)
	}
	return NewTokenBucket(client, loginRatePerSecond, loginBurst)
}
