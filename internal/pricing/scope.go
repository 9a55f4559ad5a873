package pricing

import (
	"sort"
	"strings"

	"github.com/priceform/backend-pricing/internal/template"
)

// ProductScope is the per-request product metadata used for template matching.
// It is never persisted.
type ProductScope struct {
	ProductID     string   `json:"productId"`
	Vendor        string   `json:"vendor,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CollectionIDs []string `json:"collectionIds,omitempty"`
}

// scopeRank orders scope types most-specific first: a product-level rule
// always beats a storewide one.
var scopeRank = map[template.ScopeType]int{
	template.ScopeProduct:    5,
	template.ScopeCollection: 4,
	template.ScopeVendor:     3,
	template.ScopeTag:        2,
	template.ScopeGlobal:     1,
}

// Matches reports whether the template's scope covers the product. Vendor and
// tag comparisons are case-insensitive.
func Matches(tpl template.Template, product ProductScope) bool {
	switch tpl.ScopeType {
	case template.ScopeGlobal:
		return true
	case template.ScopeProduct:
		for _, v := range tpl.ScopeValues {
			if v == product.ProductID {
				return true
			}
		}
	case template.ScopeVendor:
		for _, v := range tpl.ScopeValues {
			if product.Vendor != "" && strings.EqualFold(v, product.Vendor) {
				return true
			}
		}
	case template.ScopeTag:
		for _, v := range tpl.ScopeValues {
			for _, tag := range product.Tags {
				if strings.EqualFold(v, tag) {
					return true
				}
			}
		}
	case template.ScopeCollection:
		for _, v := range tpl.ScopeValues {
			for _, id := range product.CollectionIDs {
				if v == id {
					return true
				}
			}
		}
	}
	return false
}

// Applicable returns every active template whose scope covers the product,
// ordered by resolution priority: scope specificity first, then the
// assignment priority key, then most recent creation.
func Applicable(templates []template.Template, product ProductScope) []template.Template {
	matched := make([]template.Template, 0, len(templates))
	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}
		if Matches(tpl, product) {
			matched = append(matched, tpl)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ri, rj := scopeRank[matched[i].ScopeType], scopeRank[matched[j].ScopeType]
		if ri != rj {
			return ri > rj
		}
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

// Resolve picks the single best template for the product, if any.
func Resolve(templates []template.Template, product ProductScope) (template.Template, bool) {
	matched := Applicable(templates, product)
	if len(matched) == 0 {
		return template.Template{}, false
	}
	return matched[0], true
}
