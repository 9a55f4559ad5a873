package pricing

import (
	"sort"

	"github.com/priceform/backend-pricing/internal/template"
)

// ResolveDiscount returns the discount percentage applicable to the quantity,
// or 0 when no tier matches. The tier with the highest qualifying floor wins,
// so overlapping tier definitions resolve deterministically toward the most
// generous quantity break.
func ResolveDiscount(tiers []template.DiscountTier, quantity int) float64 {
	if len(tiers) == 0 || quantity <= 0 {
		return 0
	}
	sorted := make([]template.DiscountTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQty > sorted[j].MinQty
	})
	for _, tier := range sorted {
		if quantity < tier.MinQty {
			continue
		}
		if tier.MaxQty != nil && quantity > *tier.MaxQty {
			continue
		}
		return tier.Discount
	}
	return 0
}
