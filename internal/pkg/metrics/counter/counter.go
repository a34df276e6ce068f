package counter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Payment pipeline events counted per environment.
const (
	Received  = "received"
	Rejected  = "rejected"
	Fulfilled = "fulfilled"
	Failed    = "failed"
	Replayed  = "replayed"
)

const paymentCountersKey = "payment:counters:"

// Payments keeps pipeline counters in one Redis hash per environment.
type Payments struct {
	rdb redis.UniversalClient
}

func NewPayments(rdb redis.UniversalClient) *Payments {
	return &Payments{rdb: rdb}
}

// Incr adds one to the counter of event in env. A nil receiver is a no-op so
// callers without Redis can pass nil.
func (p *Payments) Incr(ctx context.Context, env, event string) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.HIncrBy(ctx, paymentCountersKey+env, event, 1).Err()
}

// Snapshot returns the current counters of env. Missing events read as 0.
func (p *Payments) Snapshot(ctx context.Context, env string) (map[string]int64, error) {
	out := map[string]int64{
		Received:  0,
		Rejected:  0,
		Fulfilled: 0,
		Failed:    0,
		Replayed:  0,
	}
	if p == nil || p.rdb == nil {
		return out, nil
	}
	data, err := p.rdb.HGetAll(ctx, paymentCountersKey+env).Result()
	if err != nil {
		return nil, err
	}
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
