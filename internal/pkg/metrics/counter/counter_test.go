package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentsCountersPerEnvironment(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	p := NewPayments(rdb)
	require.NoError(t, p.Incr(ctx, "live", Received))
	require.NoError(t, p.Incr(ctx, "live", Received))
	require.NoError(t, p.Incr(ctx, "live", Fulfilled))
	require.NoError(t, p.Incr(ctx, "test", Rejected))

	live, err := p.Snapshot(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{Received: 2, Rejected: 0, Fulfilled: 1, Failed: 0, Replayed: 0}, live)

	test, err := p.Snapshot(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), test[Rejected])
	assert.Equal(t, int64(0), test[Received])
}

func TestNilPaymentsIsNoop(t *testing.T) {
	var p *Payments
	assert.NoError(t, p.Incr(context.Background(), "live", Received))

	snap, err := p.Snapshot(context.Background(), "live")
	require.NoError(t, err)
	assert.Len(t, snap, 5)
	assert.Zero(t, snap[Received])
}
