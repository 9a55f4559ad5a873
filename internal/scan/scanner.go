package scan

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/priceform/backend-pricing/internal/lock"
	"github.com/priceform/backend-pricing/internal/obs"
	"github.com/priceform/backend-pricing/internal/pricing"
	"github.com/priceform/backend-pricing/internal/template"
)

// TypeCollisionScan is the asynq task type for the periodic collision sweep.
const TypeCollisionScan = "collision:scan"

const lockTTL = 2 * time.Minute

// NewCollisionScanTask builds the task enqueued by the scheduler.
func NewCollisionScanTask() *asynq.Task {
	return asynq.NewTask(TypeCollisionScan, nil)
}

// Scanner walks every shop, detects overlapping template scopes, and caches
// the report the admin collisions endpoint serves.
type Scanner struct {
	Store  template.Store
	Cache  *template.Cache
	Locker lock.Locker
	Log    zerolog.Logger
}

// HandleCollisionScan is the asynq handler for TypeCollisionScan.
func (s *Scanner) HandleCollisionScan(ctx context.Context, _ *asynq.Task) error {
	shops, err := s.Store.ListShopDomains(ctx)
	if err != nil {
		s.count("error")
		return err
	}
	for _, shopDomain := range shops {
		if err := s.ScanShop(ctx, shopDomain); err != nil {
			s.Log.Error().Err(err).Str("shop", shopDomain).Msg("collision scan failed")
			s.count("error")
			continue
		}
		s.count("ok")
	}
	return nil
}

// ScanShop runs a single shop's sweep under a distributed lock so concurrent
// workers do not duplicate the work.
func (s *Scanner) ScanShop(ctx context.Context, shopDomain string) error {
	return s.Locker.WithLock(ctx, "pricing:scan:"+shopDomain, lockTTL, func(ctx context.Context) error {
		return s.scanShop(ctx, shopDomain)
	})
}

func (s *Scanner) scanShop(ctx context.Context, shopDomain string) error {
	templates, err := s.Store.ListActive(ctx, shopDomain)
	if err != nil {
		return err
	}
	groups := pricing.DetectCollisions(templates)
	if err := s.Cache.SetCollisionReport(ctx, shopDomain, groups); err != nil {
		return err
	}
	if obs.CollisionGroups != nil {
		obs.CollisionGroups.WithLabelValues(shopDomain).Set(float64(len(groups)))
	}
	for _, group := range groups {
		names := make([]string, 0, len(group.Templates))
		for _, ref := range group.Templates {
			names = append(names, ref.Name)
		}
		s.Log.Warn().
			Str("shop", shopDomain).
			Str("scopeType", string(group.ScopeType)).
			Str("scopeValue", group.ScopeValue).
			Strs("templates", names).
			Msg("overlapping template scopes")
	}
	return nil
}

func (s *Scanner) count(result string) {
	if obs.CollisionScanTotal != nil {
		obs.CollisionScanTotal.WithLabelValues(result).Inc()
	}
}
