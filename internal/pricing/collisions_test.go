package pricing

import (
	"testing"

	"github.com/priceform/backend-pricing/internal/template"
)

func TestDetectCollisionsTwoGlobals(t *testing.T) {
	a := scopedTemplate("first global", template.ScopeGlobal)
	b := scopedTemplate("second global", template.ScopeGlobal)

	groups := DetectCollisions([]template.Template{a, b})
	if len(groups) != 1 {
		t.Fatalf("expected exactly one group, got %d", len(groups))
	}
	group := groups[0]
	if group.ScopeType != template.ScopeGlobal || group.ScopeValue != "*" {
		t.Fatalf("unexpected group key %s:%s", group.ScopeType, group.ScopeValue)
	}
	if len(group.Templates) != 2 {
		t.Fatalf("expected both templates in the group, got %d", len(group.Templates))
	}
	if group.Templates[0].Name != "first global" || group.Templates[1].Name != "second global" {
		t.Fatalf("expected insertion order preserved, got %+v", group.Templates)
	}
}

func TestDetectCollisionsNoOverlap(t *testing.T) {
	a := scopedTemplate("a", template.ScopeProduct, "1")
	b := scopedTemplate("b", template.ScopeProduct, "2")
	if groups := DetectCollisions([]template.Template{a, b}); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}

func TestDetectCollisionsIgnoresInactive(t *testing.T) {
	a := scopedTemplate("active", template.ScopeGlobal)
	b := scopedTemplate("inactive", template.ScopeGlobal)
	b.IsActive = false
	if groups := DetectCollisions([]template.Template{a, b}); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}

func TestDetectCollisionsPerScopeValue(t *testing.T) {
	a := scopedTemplate("a", template.ScopeTag, "sale", "summer")
	b := scopedTemplate("b", template.ScopeTag, "SALE")
	c := scopedTemplate("c", template.ScopeVendor, "sale")

	groups := DetectCollisions([]template.Template{a, b, c})
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %+v", groups)
	}
	if groups[0].ScopeType != template.ScopeTag || groups[0].ScopeValue != "sale" {
		t.Fatalf("expected TAG:sale group, got %s:%s", groups[0].ScopeType, groups[0].ScopeValue)
	}
}

func TestDetectCollisionsMixedScopesSameProduct(t *testing.T) {
	// Overlap through different scope types is the matcher's concern; the
	// detector only groups identical scope keys.
	global := scopedTemplate("global", template.ScopeGlobal)
	byProduct := scopedTemplate("product", template.ScopeProduct, "1")
	if groups := DetectCollisions([]template.Template{global, byProduct}); len(groups) != 0 {
		t.Fatalf("expected no groups across scope types, got %+v", groups)
	}
}
