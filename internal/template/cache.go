package template

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/priceform/backend-pricing/internal/obs"
)

// Cache stores per-shop snapshots of active templates as JSON in Redis.
// All helpers degrade to no-ops when Redis is not configured so the engine
// keeps serving from the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper with the provided TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// SnapshotKey returns the cache key holding a shop's active templates.
func SnapshotKey(shopDomain string) string {
	return "pricing:" + shopDomain + ":active-templates"
}

// CollisionReportKey returns the cache key holding a shop's last collision report.
func CollisionReportKey(shopDomain string) string {
	return "pricing:" + shopDomain + ":collisions"
}

// GetSnapshot loads the cached template snapshot. It reports whether the key existed.
func (c *Cache) GetSnapshot(ctx context.Context, shopDomain string) ([]Template, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, SnapshotKey(shopDomain)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, false, err
	}
	return templates, true, nil
}

// SetSnapshot stores the template snapshot with the configured TTL.
func (c *Cache) SetSnapshot(ctx context.Context, shopDomain string, templates []Template) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(templates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, SnapshotKey(shopDomain), data, c.ttl).Err()
}

// GetCollisionReport loads the last cached collision report as raw JSON.
func (c *Cache) GetCollisionReport(ctx context.Context, shopDomain string) (json.RawMessage, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, CollisionReportKey(shopDomain)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

// SetCollisionReport stores the collision report produced by the scanner.
func (c *Cache) SetCollisionReport(ctx context.Context, shopDomain string, report any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CollisionReportKey(shopDomain), data, c.ttl).Err()
}

// Invalidate drops the shop's snapshot. Called after every template mutation.
func (c *Cache) Invalidate(ctx context.Context, shopDomain string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, SnapshotKey(shopDomain)).Err()
}

// Loader combines the store and the cache into the read path used by the
// quote service and the collision scanner. The snapshot is supplied fresh on
// every call; nothing is retained across requests.
type Loader struct {
	Store Store
	Cache *Cache
}

// ActiveTemplates returns the shop's active templates, serving from the cache
// when possible and falling back to the database.
func (l Loader) ActiveTemplates(ctx context.Context, shopDomain string) ([]Template, error) {
	if templates, ok, err := l.Cache.GetSnapshot(ctx, shopDomain); err == nil && ok {
		countSnapshotLookup("hit")
		return templates, nil
	}
	countSnapshotLookup("miss")
	if l.Store == nil {
		return nil, ErrStoreUnavailable
	}
	templates, err := l.Store.ListActive(ctx, shopDomain)
	if err != nil {
		return nil, err
	}
	_ = l.Cache.SetSnapshot(ctx, shopDomain, templates)
	return templates, nil
}

func countSnapshotLookup(result string) {
	if obs.SnapshotCacheTotal != nil {
		obs.SnapshotCacheTotal.WithLabelValues(result).Inc()
	}
}
