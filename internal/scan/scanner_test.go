package scan

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/priceform/backend-pricing/internal/lock"
	"github.com/priceform/backend-pricing/internal/template"
)

type stubStore struct {
	template.Store
	shops     []string
	templates map[string][]template.Template
}

func (s *stubStore) ListShopDomains(ctx context.Context) ([]string, error) {
	return s.shops, nil
}

func (s *stubStore) ListActive(ctx context.Context, shopDomain string) ([]template.Template, error) {
	return s.templates[shopDomain], nil
}

func globalTemplate(shopDomain, name string) template.Template {
	return template.Template{
		ID:             uuid.New(),
		ShopDomain:     shopDomain,
		Name:           name,
		PricingFormula: "base_price",
		ScopeType:      template.ScopeGlobal,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
}

func newTestScanner(t *testing.T) (*Scanner, *redis.Client, *stubStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &stubStore{
		shops: []string{"demo.myshopify.com"},
		templates: map[string][]template.Template{
			"demo.myshopify.com": {
				globalTemplate("demo.myshopify.com", "First"),
				globalTemplate("demo.myshopify.com", "Second"),
			},
		},
	}
	return &Scanner{
		Store:  store,
		Cache:  template.NewCache(client, time.Minute),
		Locker: lock.Locker{R: client},
		Log:    zerolog.Nop(),
	}, client, store
}

func TestHandleCollisionScanCachesReport(t *testing.T) {
	scanner, client, _ := newTestScanner(t)

	err := scanner.HandleCollisionScan(context.Background(), NewCollisionScanTask())
	require.NoError(t, err)

	raw, err := client.Get(context.Background(), template.CollisionReportKey("demo.myshopify.com")).Bytes()
	require.NoError(t, err)

	var groups []struct {
		ScopeType  string `json:"scopeType"`
		ScopeValue string `json:"scopeValue"`
		Templates  []struct {
			Name string `json:"name"`
		} `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(raw, &groups))
	require.Len(t, groups, 1)
	require.Equal(t, "GLOBAL", groups[0].ScopeType)
	require.Equal(t, "*", groups[0].ScopeValue)
	require.Len(t, groups[0].Templates, 2)
}

func TestHandleCollisionScanNoCollisions(t *testing.T) {
	scanner, client, store := newTestScanner(t)
	store.templates["demo.myshopify.com"] = store.templates["demo.myshopify.com"][:1]

	err := scanner.HandleCollisionScan(context.Background(), NewCollisionScanTask())
	require.NoError(t, err)

	raw, err := client.Get(context.Background(), template.CollisionReportKey("demo.myshopify.com")).Bytes()
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))
}

func TestScanShopHoldsLock(t *testing.T) {
	scanner, client, _ := newTestScanner(t)

	err := scanner.ScanShop(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)

	// Lock released after the sweep.
	exists, err := client.Exists(context.Background(), "pricing:scan:demo.myshopify.com").Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}
