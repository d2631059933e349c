package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a best-effort distributed lock (SET NX PX) shared by every API instance.
// Acquire polls until the lock frees up, the context ends or wait elapses.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
	log     *zap.Logger
}

// NewRedis waits at most ttl for a held lock, the time its holder can keep it.
func NewRedis(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{
		client:  client,
		ttl:     ttl,
		wait:    ttl,
		backoff: 25 * time.Millisecond,
		log:     log.Named("lock"),
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Error("redis lock unavailable", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrNotAcquired, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-time.After(r.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		// the request context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			r.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
