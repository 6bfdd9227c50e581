package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// Cache is a best-effort read-through cache for latest policies. Misses and
// errors fall back to the store.
type Cache interface {
	Get(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, bool)
	Set(ctx context.Context, policy domain.TenantPolicy)
	Invalidate(ctx context.Context, tenantID id.TenantID)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(tenantID id.TenantID) string {
	return fmt.Sprintf("veridoc:policy:%s", tenantID.String())
}

func (c *RedisCache) Get(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, bool) {
	raw, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		return domain.TenantPolicy{}, false
	}
	var policy domain.TenantPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return domain.TenantPolicy{}, false
	}
	return policy, true
}

func (c *RedisCache) Set(ctx context.Context, policy domain.TenantPolicy) {
	raw, err := json.Marshal(policy)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(policy.TenantID), raw, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID id.TenantID) {
	c.client.Del(ctx, c.key(tenantID))
}
