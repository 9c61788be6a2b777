package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/slamint/account-management/internal/core/port"
)

const defaultProviderCachePrefix = "accmgmt:idp:"

// ProviderCacheRepository stores identity-provider artifacts (service token,
// realm-role catalog) so every service instance shares one upstream fetch.
type ProviderCacheRepository struct {
	client *red.Client
	prefix string
}

// NewProviderCacheRepository wires Redis storage for identity-provider caching.
func NewProviderCacheRepository(client *red.Client, prefix string) *ProviderCacheRepository {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultProviderCachePrefix
	}

	return &ProviderCacheRepository{client: client, prefix: trimmed}
}

// Get retrieves a cached value, translating an absent key into ErrCacheMiss.
func (r *ProviderCacheRepository) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.client == nil {
		return "", fmt.Errorf("provider cache not configured")
	}

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", port.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get provider cache: %w", err)
	}

	return value, nil
}

// Set stores a value under the prefixed key with the supplied TTL.
func (r *ProviderCacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("provider cache not configured")
	}

	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set provider cache: %w", err)
	}

	return nil
}

// Delete drops the prefixed key. Deleting an absent key is not an error.
func (r *ProviderCacheRepository) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("provider cache not configured")
	}

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del provider cache: %w", err)
	}

	return nil
}

var _ port.Cache = (*ProviderCacheRepository)(nil)
