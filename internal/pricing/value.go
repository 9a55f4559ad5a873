package pricing

import (
	"strconv"
	"strings"

	"github.com/priceform/backend-pricing/internal/template"
)

// ValueKind tags the variant of a submitted field value.
type ValueKind int

const (
	ValueNumber ValueKind = iota
	ValueText
	ValueBool
)

// Value is the loosely typed field value a storefront widget submits. It is
// resolved to a single float64 before reaching the evaluator, which stays
// monomorphic.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Bool   bool
}

// NumberValue wraps a numeric input.
func NumberValue(v float64) Value { return Value{Kind: ValueNumber, Number: v} }

// TextValue wraps a text or option-key input.
func TextValue(v string) Value { return Value{Kind: ValueText, Text: v} }

// BoolValue wraps a checkbox input.
func BoolValue(v bool) Value { return Value{Kind: ValueBool, Bool: v} }

// ValueFromJSON converts a decoded JSON value into a Value. It reports false
// for shapes the engine cannot interpret (objects, arrays, null).
func ValueFromJSON(raw any) (Value, bool) {
	switch v := raw.(type) {
	case float64:
		return NumberValue(v), true
	case int:
		return NumberValue(float64(v)), true
	case string:
		return TextValue(v), true
	case bool:
		return BoolValue(v), true
	default:
		return Value{}, false
	}
}

// resolveNumeric converts a field value into the number exposed to the
// formula: numeric fields pass through, option fields contribute the chosen
// option's price delta, checkboxes contribute their option delta (or 1) when
// checked. The second return reports whether the field contributes at all;
// the error signals an unknown option key.
func resolveNumeric(field template.Field, value Value) (float64, bool, error) {
	switch field.Type {
	case template.FieldNumber:
		switch value.Kind {
		case ValueNumber:
			return value.Number, true, nil
		case ValueText:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value.Text), 64)
			if err != nil {
				return 0, false, &OptionError{FieldKey: field.Key, Option: value.Text}
			}
			return parsed, true, nil
		case ValueBool:
			if value.Bool {
				return 1, true, nil
			}
			return 0, true, nil
		}
	case template.FieldSelect, template.FieldRadio:
		if value.Kind != ValueText {
			return 0, false, &OptionError{FieldKey: field.Key, Option: ""}
		}
		for _, opt := range field.Options {
			if opt.Value == value.Text {
				return opt.PriceDelta, true, nil
			}
		}
		return 0, false, &OptionError{FieldKey: field.Key, Option: value.Text}
	case template.FieldCheckbox:
		checked := value.Kind == ValueBool && value.Bool
		if !checked {
			return 0, true, nil
		}
		if len(field.Options) > 0 {
			return field.Options[0].PriceDelta, true, nil
		}
		return 1, true, nil
	case template.FieldText:
		// Text has no numeric meaning; it never reaches the evaluator.
		return 0, false, nil
	}
	return 0, false, nil
}
