// Package coalesce merges concurrent executions for the same key into one and
// keeps the shared result around for a short window after completion.
//
// Memory is only correct inside a single process. When the service runs on
// several instances use Redis, and keep unique constraints on the persisted
// side as the final guard.
package coalesce

import (
	"context"
	"time"
)

// DefaultTTL is how long a finished result stays shared.
const DefaultTTL = 60 * time.Second

// Func is the coalesced unit of work. It receives a context that is not
// cancelled when the first caller goes away.
type Func[T any] func(ctx context.Context) (T, error)

// Cache coalesces calls by key. shared reports whether the value came from
// another caller's execution.
type Cache[T any] interface {
	Do(ctx context.Context, key string, fn Func[T]) (value T, shared bool, err error)
}
