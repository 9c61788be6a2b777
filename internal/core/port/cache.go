package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache exposes the shared, TTL-bounded cache used for the identity provider's
// service token and realm-role catalog. Backed by Redis so multiple service
// instances reuse one fetch.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
