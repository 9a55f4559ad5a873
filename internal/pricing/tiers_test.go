package pricing

import (
	"testing"

	"github.com/priceform/backend-pricing/internal/template"
)

func intPtr(v int) *int { return &v }

func TestResolveDiscountTiers(t *testing.T) {
	tiers := []template.DiscountTier{
		{MinQty: 1, MaxQty: intPtr(4), Discount: 0},
		{MinQty: 5, MaxQty: intPtr(9), Discount: 10},
		{MinQty: 10, MaxQty: nil, Discount: 20},
	}
	cases := []struct {
		quantity int
		want     float64
	}{
		{1, 0},
		{4, 0},
		{5, 10},
		{9, 10},
		{10, 20},
		{50, 20},
	}
	for _, tc := range cases {
		if got := ResolveDiscount(tiers, tc.quantity); got != tc.want {
			t.Fatalf("quantity %d: expected %.0f%%, got %.0f%%", tc.quantity, tc.want, got)
		}
	}
}

func TestResolveDiscountNoTiers(t *testing.T) {
	if got := ResolveDiscount(nil, 10); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestResolveDiscountNoMatch(t *testing.T) {
	tiers := []template.DiscountTier{{MinQty: 10, Discount: 15}}
	if got := ResolveDiscount(tiers, 3); got != 0 {
		t.Fatalf("expected 0 below the first tier, got %v", got)
	}
}

func TestResolveDiscountOverlappingTiersHighestFloorWins(t *testing.T) {
	tiers := []template.DiscountTier{
		{MinQty: 1, MaxQty: nil, Discount: 5},
		{MinQty: 10, MaxQty: nil, Discount: 20},
	}
	if got := ResolveDiscount(tiers, 15); got != 20 {
		t.Fatalf("expected the higher floor to win, got %v", got)
	}
	if got := ResolveDiscount(tiers, 5); got != 5 {
		t.Fatalf("expected the lower tier below the higher floor, got %v", got)
	}
}

func TestResolveDiscountDoesNotMutateInput(t *testing.T) {
	tiers := []template.DiscountTier{
		{MinQty: 1, Discount: 1},
		{MinQty: 10, Discount: 10},
	}
	_ = ResolveDiscount(tiers, 10)
	if tiers[0].MinQty != 1 || tiers[1].MinQty != 10 {
		t.Fatal("tier order must not be mutated")
	}
}
