package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 10

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
	logger         *slog.Logger
}

// NewRepo returns a redis backed room registry. Every touch of a room refreshes its key ttl;
// a zero expireDuration keeps keys until they are deleted by hand.
func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
		logger:         logger,
	}
}

func (r repo) expire(ctx context.Context, c redis.Cmdable, key string) {
	if r.expireDuration > 0 {
		c.Expire(ctx, key, r.expireDuration)
	}
}
