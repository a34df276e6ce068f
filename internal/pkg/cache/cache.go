package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

var (
	client *redis.Client
	mu     sync.Mutex
)

func newClient() *redis.Client {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})
}

// SetupCache connects to the Redis compatible cache server, retrying with
// exponential backoff. The service keeps running without cache; callers see
// the connection errors.
func SetupCache() {
	mu.Lock()
	client = newClient()
	c := client
	mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		pong, err := c.Ping(ctx).Result()
		if err != nil {
			log.Printf("Could not connect to cache (try %d): %v", attempt, err)
			return err
		}
		log.Printf("Successfully connected to cache: %s", pong)
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	}
}

// GetClient returns the Redis client instance. It does not wait for the
// server; use SetupCache at startup for that.
func GetClient() *redis.Client {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		client = newClient()
	}
	return client
}

// SetClient replaces the shared client, e.g. with one pointing at a test server.
func SetClient(c *redis.Client) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}
