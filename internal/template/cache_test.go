package template

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/priceform/backend-pricing/internal/obs"
)

func newCacheTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSnapshotRoundTrip(t *testing.T) {
	cache := NewCache(newCacheTestClient(t), time.Minute)
	ctx := context.Background()

	templates := []Template{{
		ID:             uuid.New(),
		ShopDomain:     "demo.myshopify.com",
		Name:           "Cached",
		PricingFormula: "base_price",
		ScopeType:      ScopeGlobal,
		IsActive:       true,
	}}

	_, found, err := cache.GetSnapshot(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.SetSnapshot(ctx, "demo.myshopify.com", templates))

	got, found, err := cache.GetSnapshot(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 1)
	require.Equal(t, templates[0].ID, got[0].ID)
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	cache := NewCache(newCacheTestClient(t), time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetSnapshot(ctx, "demo.myshopify.com", []Template{}))
	require.NoError(t, cache.Invalidate(ctx, "demo.myshopify.com"))

	_, found, err := cache.GetSnapshot(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.False(t, found)
}

func TestNilCacheIsNoOp(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	_, found, err := cache.GetSnapshot(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, cache.SetSnapshot(ctx, "demo.myshopify.com", nil))
	require.NoError(t, cache.Invalidate(ctx, "demo.myshopify.com"))
}

func TestCollisionReportRoundTrip(t *testing.T) {
	cache := NewCache(newCacheTestClient(t), time.Minute)
	ctx := context.Background()

	_, found, err := cache.GetCollisionReport(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.SetCollisionReport(ctx, "demo.myshopify.com", []map[string]any{{"scopeValue": "*"}}))

	raw, found, err := cache.GetCollisionReport(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, string(raw), "scopeValue")
}

type stubLoaderStore struct {
	Store
	calls int
}

func (s *stubLoaderStore) ListActive(ctx context.Context, shopDomain string) ([]Template, error) {
	s.calls++
	return []Template{{ID: uuid.New(), ShopDomain: shopDomain, Name: "From DB", PricingFormula: "base_price", ScopeType: ScopeGlobal, IsActive: true}}, nil
}

func TestLoaderServesFromCacheAfterFirstLoad(t *testing.T) {
	store := &stubLoaderStore{}
	loader := Loader{Store: store, Cache: NewCache(newCacheTestClient(t), time.Minute)}
	ctx := context.Background()

	first, err := loader.ActiveTemplates(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := loader.ActiveTemplates(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, store.calls)
}

func TestLoaderCountsCacheLookups(t *testing.T) {
	obs.MustRegisterDomainMetrics("pricing_test", prometheus.NewRegistry())

	store := &stubLoaderStore{}
	loader := Loader{Store: store, Cache: NewCache(newCacheTestClient(t), time.Minute)}
	ctx := context.Background()

	hitsBefore := testutil.ToFloat64(obs.SnapshotCacheTotal.WithLabelValues("hit"))
	missesBefore := testutil.ToFloat64(obs.SnapshotCacheTotal.WithLabelValues("miss"))

	_, err := loader.ActiveTemplates(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	_, err = loader.ActiveTemplates(ctx, "demo.myshopify.com")
	require.NoError(t, err)

	require.Equal(t, missesBefore+1, testutil.ToFloat64(obs.SnapshotCacheTotal.WithLabelValues("miss")))
	require.Equal(t, hitsBefore+1, testutil.ToFloat64(obs.SnapshotCacheTotal.WithLabelValues("hit")))
}
