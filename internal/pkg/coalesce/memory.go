package coalesce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Memory is an in-process Cache. Successful results are evicted ttl after
// completion; failed executions are evicted right away so the next caller
// runs fresh.
type Memory[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
	ttl   time.Duration
}

func NewMemory[T any](ttl time.Duration) *Memory[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory[T]{calls: make(map[string]*call[T]), ttl: ttl}
}

func (m *Memory[T]) Do(ctx context.Context, key string, fn Func[T]) (T, bool, error) {
	m.mu.Lock()
	if c, ok := m.calls[key]; ok {
		m.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero T
			return zero, true, ctx.Err()
		}
	}
	c := &call[T]{done: make(chan struct{})}
	m.calls[key] = c
	m.mu.Unlock()

	m.run(ctx, c, fn)
	close(c.done)

	if c.err != nil {
		m.forget(key, c)
	} else {
		time.AfterFunc(m.ttl, func() { m.forget(key, c) })
	}
	return c.val, false, c.err
}

func (m *Memory[T]) run(ctx context.Context, c *call[T], fn Func[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("coalesced call panicked: %v", r)
		}
	}()
	c.val, c.err = fn(context.WithoutCancel(ctx))
}

func (m *Memory[T]) forget(key string, c *call[T]) {
	m.mu.Lock()
	if m.calls[key] == c {
		delete(m.calls, key)
	}
	m.mu.Unlock()
}

// Len returns the number of tracked keys.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
