package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/priceform/backend-pricing/internal/formula"
	"github.com/priceform/backend-pricing/internal/template"
)

var (
	// ErrTemplateNotFound is returned when no template covers the product.
	ErrTemplateNotFound = errors.New("pricing: no template matches the product")
	// ErrTemplateInactive is returned when the selected template is disabled.
	ErrTemplateInactive = errors.New("pricing: template is not active")
)

// RequiredFieldsError reports the required fields missing from a calculation request.
type RequiredFieldsError struct {
	Keys []string
}

// Error implements the error interface.
func (e *RequiredFieldsError) Error() string {
	return fmt.Sprintf("pricing: required field(s) missing: %s", strings.Join(e.Keys, ", "))
}

// OptionError reports a field value that does not match any declared option.
type OptionError struct {
	FieldKey string
	Option   string
}

// Error implements the error interface.
func (e *OptionError) Error() string {
	return fmt.Sprintf("pricing: field %q has no option %q", e.FieldKey, e.Option)
}

// QuantityError reports a quantity outside the template's configured limits.
// Message carries the merchant's user-facing text when one is configured.
type QuantityError struct {
	Quantity int
	Limit    int
	Message  string
}

// Error implements the error interface.
func (e *QuantityError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("pricing: quantity %d is outside the allowed range", e.Quantity)
}

// BreakdownKind classifies a breakdown line for display purposes.
type BreakdownKind string

const (
	KindBase        BreakdownKind = "base"
	KindCalculation BreakdownKind = "calculation"
	KindAddon       BreakdownKind = "addon"
	KindTotal       BreakdownKind = "total"
)

// BreakdownItem is one display line of an itemized price. It is a
// presentation artifact, not authoritative state.
type BreakdownItem struct {
	Label string        `json:"label"`
	Value float64       `json:"value"`
	Kind  BreakdownKind `json:"kind"`
}

// Input carries the buyer-supplied parameters of a price calculation.
type Input struct {
	FieldValues map[string]Value
	Quantity    int
	BasePrice   float64
	IsExpress   bool
}

// Result is the outcome of a price calculation.
type Result struct {
	TemplateID      uuid.UUID       `json:"templateId"`
	UnitPrice       float64         `json:"unitPrice"`
	Subtotal        float64         `json:"subtotal"`
	DiscountPercent float64         `json:"discountPercent"`
	DiscountAmount  float64         `json:"discountAmount"`
	CalculatedPrice float64         `json:"calculatedPrice"`
	ExpressApplied  bool            `json:"expressApplied"`
	Quantity        int             `json:"quantity"`
	Breakdown       []BreakdownItem `json:"breakdown"`
}

// Calculate evaluates the template's formula against the supplied field
// values and applies the express multiplier and discount tier. Monetary
// values are rounded only at output boundaries; intermediate math keeps full
// floating-point precision.
func Calculate(tpl template.Template, in Input) (Result, error) {
	if !tpl.IsActive {
		return Result{}, ErrTemplateInactive
	}
	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}
	if err := checkQuantityLimits(tpl, quantity); err != nil {
		return Result{}, err
	}
	if missing := missingRequiredFields(tpl, in.FieldValues); len(missing) > 0 {
		return Result{}, &RequiredFieldsError{Keys: missing}
	}

	bindings := map[string]float64{"base_price": in.BasePrice}
	for key, value := range in.FieldValues {
		field, ok := tpl.FieldByKey(key)
		if !ok || !field.UseInFormula {
			continue
		}
		numeric, contributes, err := resolveNumeric(field, value)
		if err != nil {
			return Result{}, err
		}
		if contributes {
			bindings[key] = numeric
		}
	}

	unitPrice, err := formula.Evaluate(tpl.PricingFormula, bindings)
	if err != nil {
		return Result{}, err
	}

	baseUnit := unitPrice
	expressApplied := false
	if in.IsExpress && tpl.HasExpressOption {
		unitPrice *= tpl.ExpressMultiplier
		expressApplied = true
	}

	subtotal := unitPrice * float64(quantity)
	discountPercent := ResolveDiscount(tpl.DiscountTiers, quantity)
	discountAmount := subtotal * discountPercent / 100
	total := subtotal - discountAmount

	breakdown := []BreakdownItem{
		{Label: "Base price", Value: formula.Round2(in.BasePrice), Kind: KindBase},
		{Label: "Unit price", Value: formula.Round2(baseUnit), Kind: KindCalculation},
	}
	if expressApplied {
		label := tpl.ExpressLabel
		if label == "" {
			label = "Express production"
		}
		breakdown = append(breakdown, BreakdownItem{Label: label, Value: formula.Round2(unitPrice - baseUnit), Kind: KindAddon})
	}
	if quantity > 1 {
		breakdown = append(breakdown, BreakdownItem{
			Label: fmt.Sprintf("Subtotal (x%d)", quantity),
			Value: formula.Round2(subtotal),
			Kind:  KindCalculation,
		})
	}
	if discountAmount > 0 {
		breakdown = append(breakdown, BreakdownItem{
			Label: fmt.Sprintf("Quantity discount (%.0f%%)", discountPercent),
			Value: -formula.Round2(discountAmount),
			Kind:  KindAddon,
		})
	}
	breakdown = append(breakdown, BreakdownItem{Label: "Total", Value: formula.Round2(total), Kind: KindTotal})

	return Result{
		TemplateID:      tpl.ID,
		UnitPrice:       formula.Round2(unitPrice),
		Subtotal:        formula.Round2(subtotal),
		DiscountPercent: discountPercent,
		DiscountAmount:  formula.Round2(discountAmount),
		CalculatedPrice: formula.Round2(total),
		ExpressApplied:  expressApplied,
		Quantity:        quantity,
		Breakdown:       breakdown,
	}, nil
}

func checkQuantityLimits(tpl template.Template, quantity int) error {
	if tpl.MinQuantity != nil && quantity < *tpl.MinQuantity {
		return &QuantityError{Quantity: quantity, Limit: *tpl.MinQuantity, Message: tpl.MinQuantityMessage}
	}
	if tpl.MaxQuantity != nil && quantity > *tpl.MaxQuantity {
		return &QuantityError{Quantity: quantity, Limit: *tpl.MaxQuantity, Message: tpl.MaxQuantityMessage}
	}
	return nil
}

func missingRequiredFields(tpl template.Template, values map[string]Value) []string {
	var missing []string
	for _, field := range tpl.Fields {
		if !field.Required {
			continue
		}
		if _, ok := values[field.Key]; !ok {
			missing = append(missing, field.Key)
		}
	}
	return missing
}
