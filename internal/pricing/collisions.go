package pricing

import (
	"strings"

	"github.com/google/uuid"

	"github.com/priceform/backend-pricing/internal/template"
)

// TemplateRef identifies one template inside a collision group.
type TemplateRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CollisionGroup reports templates whose scopes overlap on the same key.
// It surfaces merchant-facing ambiguity for manual review; resolution at
// request time stays with the scope matcher.
type CollisionGroup struct {
	ScopeType  template.ScopeType `json:"scopeType"`
	ScopeValue string             `json:"scopeValue"`
	Templates  []TemplateRef      `json:"templates"`
}

// DetectCollisions expands every active template into its covered scope keys
// and reports each key claimed by more than one template. Group order follows
// the first appearance of each key; malformed templates are skipped rather
// than aborting the scan.
func DetectCollisions(templates []template.Template) []CollisionGroup {
	type scopeKey struct {
		scopeType template.ScopeType
		value     string
	}
	var order []scopeKey
	members := make(map[scopeKey][]TemplateRef)

	add := func(key scopeKey, tpl template.Template) {
		if _, seen := members[key]; !seen {
			order = append(order, key)
		}
		members[key] = append(members[key], TemplateRef{ID: tpl.ID, Name: tpl.Name})
	}

	for _, tpl := range templates {
		if !tpl.IsActive {
			continue
		}
		switch tpl.ScopeType {
		case template.ScopeGlobal:
			add(scopeKey{scopeType: template.ScopeGlobal, value: "*"}, tpl)
		case template.ScopeProduct, template.ScopeCollection, template.ScopeVendor, template.ScopeTag:
			for _, value := range tpl.ScopeValues {
				add(scopeKey{scopeType: tpl.ScopeType, value: normalizeScopeValue(tpl.ScopeType, value)}, tpl)
			}
		default:
			// Unknown scope type: nothing to report against, skip.
			continue
		}
	}

	var groups []CollisionGroup
	for _, key := range order {
		if refs := members[key]; len(refs) > 1 {
			groups = append(groups, CollisionGroup{
				ScopeType:  key.scopeType,
				ScopeValue: key.value,
				Templates:  refs,
			})
		}
	}
	return groups
}

// normalizeScopeValue folds vendor and tag values to lower case so scopes
// that match the same products case-insensitively collide on the same key.
func normalizeScopeValue(scopeType template.ScopeType, value string) string {
	switch scopeType {
	case template.ScopeVendor, template.ScopeTag:
		return strings.ToLower(strings.TrimSpace(value))
	default:
		return strings.TrimSpace(value)
	}
}
