package coalesce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL      = 2 * time.Minute
	defaultPollInterval = 50 * time.Millisecond
)

var unlockScript = redis.NewScript(`if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end`)

// Redis coalesces across processes. The executing instance holds a SET NX
// lock on the key and publishes the JSON encoded result for ttl; the others
// poll until the result shows up or the lock disappears.
type Redis[T any] struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
}

func NewRedis[T any](client redis.UniversalClient, prefix string, ttl time.Duration) *Redis[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "coalesce"
	}
	return &Redis[T]{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		lockTTL:      defaultLockTTL,
		pollInterval: defaultPollInterval,
	}
}

// WithPollInterval changes how often waiters check for the result.
func (r *Redis[T]) WithPollInterval(d time.Duration) *Redis[T] {
	if d > 0 {
		r.pollInterval = d
	}
	return r
}

func (r *Redis[T]) resultKey(key string) string { return r.prefix + ":result:" + key }
func (r *Redis[T]) lockKey(key string) string   { return r.prefix + ":lock:" + key }

func (r *Redis[T]) Do(ctx context.Context, key string, fn Func[T]) (T, bool, error) {
	var zero T
	resultKey := r.resultKey(key)
	lockKey := r.lockKey(key)

	for {
		if v, ok, err := r.load(ctx, resultKey); err != nil {
			return zero, false, err
		} else if ok {
			return v, true, nil
		}

		token := uuid.NewString()
		acquired, err := r.client.SetNX(ctx, lockKey, token, r.lockTTL).Result()
		if err != nil {
			return zero, false, fmt.Errorf("claim %s: %w", key, err)
		}
		if acquired {
			return r.execute(ctx, key, token, fn)
		}

		if err := r.wait(ctx, resultKey, lockKey); err != nil {
			return zero, true, err
		}
	}
}

func (r *Redis[T]) execute(ctx context.Context, key, token string, fn Func[T]) (T, bool, error) {
	resultKey := r.resultKey(key)
	lockKey := r.lockKey(key)
	defer r.unlock(lockKey, token)

	// A previous holder may have published between our load and the claim.
	if v, ok, err := r.load(ctx, resultKey); err == nil && ok {
		return v, true, nil
	}

	v, err := fn(context.WithoutCancel(ctx))
	if err != nil {
		return v, false, err
	}

	data, merr := json.Marshal(v)
	if merr != nil {
		log.Warnf("[Coalesce] Could not encode result for %s: %v", key, merr)
		return v, false, nil
	}
	if serr := r.client.Set(context.WithoutCancel(ctx), resultKey, data, r.ttl).Err(); serr != nil {
		log.Warnf("[Coalesce] Could not publish result for %s: %v", key, serr)
	}
	return v, false, nil
}

func (r *Redis[T]) load(ctx context.Context, resultKey string) (T, bool, error) {
	var v T
	data, err := r.client.Get(ctx, resultKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode coalesced result: %w", err)
	}
	return v, true, nil
}

// wait returns once the result is published or the lock is gone.
func (r *Redis[T]) wait(ctx context.Context, resultKey, lockKey string) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.client.Exists(ctx, resultKey, lockKey).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			exists, err := r.client.Exists(ctx, resultKey).Result()
			if err != nil {
				return err
			}
			if exists == 1 {
				return nil
			}
		}
	}
}

func (r *Redis[T]) unlock(lockKey, token string) {
	res, err := unlockScript.Run(context.Background(), r.client, []string{lockKey}, token).Int64()
	if err != nil {
		log.Warnf("[Coalesce] Unlock of %s failed: %v", lockKey, err)
		return
	}
	if res == 0 {
		log.Warnf("[Coalesce] Lock %s expired before release", lockKey)
	}
}
