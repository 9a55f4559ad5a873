package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScopeType declares which products a template applies to.
type ScopeType string

const (
	ScopeGlobal     ScopeType = "GLOBAL"
	ScopeProduct    ScopeType = "PRODUCT"
	ScopeCollection ScopeType = "COLLECTION"
	ScopeVendor     ScopeType = "VENDOR"
	ScopeTag        ScopeType = "TAG"
)

// FieldType enumerates the input widgets a template field can render as.
type FieldType string

const (
	FieldNumber   FieldType = "NUMBER"
	FieldText     FieldType = "TEXT"
	FieldSelect   FieldType = "SELECT"
	FieldRadio    FieldType = "RADIO"
	FieldCheckbox FieldType = "CHECKBOX"
)

var (
	// ErrInvalidScope indicates the scope type/value combination violates an invariant.
	ErrInvalidScope = errors.New("template: invalid scope")
	// ErrInvalidExpress indicates the express option configuration is inconsistent.
	ErrInvalidExpress = errors.New("template: express multiplier must be greater than 1")
)

var fieldKeyPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FieldOption is one selectable choice of a SELECT/RADIO/CHECKBOX field. Its
// price delta is what the formula consumes, never the label.
type FieldOption struct {
	Value      string  `json:"value"`
	Label      string  `json:"label"`
	PriceDelta float64 `json:"priceDelta"`
}

// Field describes one merchant-defined input on a template.
type Field struct {
	Key          string        `json:"key"`
	Label        string        `json:"label"`
	Type         FieldType     `json:"type"`
	Required     bool          `json:"required"`
	UseInFormula bool          `json:"useInFormula"`
	Options      []FieldOption `json:"options,omitempty"`
}

// DiscountTier maps a quantity range to a percentage price reduction.
// MaxQty nil means the tier is unbounded above.
type DiscountTier struct {
	MinQty   int     `json:"minQty"`
	MaxQty   *int    `json:"maxQty"`
	Discount float64 `json:"discount"`
}

// Template is a named pricing rule. It is read-only input to the pricing
// engine; this service mutates templates only through the admin surface.
type Template struct {
	ID                 uuid.UUID      `json:"id"`
	ShopDomain         string         `json:"shopDomain"`
	Name               string         `json:"name"`
	PricingFormula     string         `json:"pricingFormula"`
	ScopeType          ScopeType      `json:"scopeType"`
	ScopeValues        []string       `json:"scopeValues"`
	Fields             []Field        `json:"fields"`
	IsActive           bool           `json:"isActive"`
	HasExpressOption   bool           `json:"hasExpressOption"`
	ExpressMultiplier  float64        `json:"expressMultiplier,omitempty"`
	ExpressLabel       string         `json:"expressLabel,omitempty"`
	MinQuantity        *int           `json:"minQuantity,omitempty"`
	MaxQuantity        *int           `json:"maxQuantity,omitempty"`
	MinQuantityMessage string         `json:"minQuantityMessage,omitempty"`
	MaxQuantityMessage string         `json:"maxQuantityMessage,omitempty"`
	DiscountTiers      []DiscountTier `json:"discountTiers,omitempty"`
	// Priority is the assignment-provided tie-break key, resolved externally
	// and injected when the snapshot is loaded.
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FormulaFieldKeys returns the keys of fields exposed to the formula evaluator.
func (t Template) FormulaFieldKeys() []string {
	keys := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.UseInFormula {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// FieldByKey looks up a field definition by key.
func (t Template) FieldByKey(key string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the structural invariants of a template definition.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template: name is required")
	}
	if strings.TrimSpace(t.PricingFormula) == "" {
		return errors.New("template: pricing formula is required")
	}
	switch t.ScopeType {
	case ScopeGlobal:
		if len(t.ScopeValues) != 0 {
			return fmt.Errorf("%w: GLOBAL scope must not carry scope values", ErrInvalidScope)
		}
	case ScopeProduct, ScopeCollection, ScopeVendor, ScopeTag:
		if len(t.ScopeValues) == 0 {
			return fmt.Errorf("%w: scope type %s requires at least one scope value", ErrInvalidScope, t.ScopeType)
		}
	default:
		return fmt.Errorf("%w: unknown scope type %q", ErrInvalidScope, t.ScopeType)
	}
	if t.HasExpressOption && t.ExpressMultiplier <= 1 {
		return ErrInvalidExpress
	}
	if t.MinQuantity != nil && *t.MinQuantity < 0 {
		return errors.New("template: minQuantity must not be negative")
	}
	if t.MinQuantity != nil && t.MaxQuantity != nil && *t.MaxQuantity < *t.MinQuantity {
		return errors.New("template: maxQuantity must not be below minQuantity")
	}

	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !fieldKeyPattern.MatchString(f.Key) {
			return fmt.Errorf("template: field key %q must match %s", f.Key, fieldKeyPattern.String())
		}
		if seen[f.Key] {
			return fmt.Errorf("template: duplicate field key %q", f.Key)
		}
		seen[f.Key] = true
		switch f.Type {
		case FieldNumber, FieldText, FieldSelect, FieldRadio, FieldCheckbox:
		default:
			return fmt.Errorf("template: field %q has unknown type %q", f.Key, f.Type)
		}
	}

	for i, tier := range t.DiscountTiers {
		if tier.MinQty < 0 {
			return fmt.Errorf("template: discount tier %d has negative minQty", i)
		}
		if tier.MaxQty != nil && *tier.MaxQty < tier.MinQty {
			return fmt.Errorf("template: discount tier %d has maxQty below minQty", i)
		}
		if tier.Discount < 0 || tier.Discount > 100 {
			return fmt.Errorf("template: discount tier %d percentage out of range", i)
		}
	}
	return nil
}

// Assignment links a template to a product with an externally managed
// priority used as the scope-resolution tie-break.
type Assignment struct {
	ID         uuid.UUID `json:"id"`
	ShopDomain string    `json:"shopDomain"`
	TemplateID uuid.UUID `json:"templateId"`
	ProductID  string    `json:"productId"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"createdAt"`
}
