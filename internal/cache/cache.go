package cache

import (
	"context"
	"time"
)

// Cache is the key-value contract used for short-lived lookups such as
// token → user resolution. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss, as opposed to a transport error.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }

// NoopCache never stores anything. Used when no Redis is configured.
type NoopCache struct{}

var _ Cache = NoopCache{}

func (NoopCache) Get(context.Context, string) (string, error) { return "", ErrMiss }

func (NoopCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (NoopCache) Del(context.Context, ...string) (int64, error) { return 0, nil }

func (NoopCache) Ping(context.Context) error { return nil }

func (NoopCache) Close() error { return nil }
