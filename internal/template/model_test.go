package template

import (
	"strings"
	"testing"
)

func validTemplate() Template {
	return Template{
		Name:           "Poster pricing",
		PricingFormula: "base_price * size_factor",
		ScopeType:      ScopeTag,
		ScopeValues:    []string{"poster"},
		Fields: []Field{
			{Key: "size_factor", Label: "Size factor", Type: FieldNumber, UseInFormula: true},
		},
		IsActive: true,
	}
}

func TestValidateAcceptsWellFormedTemplate(t *testing.T) {
	if err := validTemplate().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateGlobalScopeRejectsValues(t *testing.T) {
	tpl := validTemplate()
	tpl.ScopeType = ScopeGlobal
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected scope error for GLOBAL with values")
	}
	tpl.ScopeValues = nil
	if err := tpl.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateScopedTemplateRequiresValues(t *testing.T) {
	tpl := validTemplate()
	tpl.ScopeValues = nil
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected scope error for TAG without values")
	}
}

func TestValidateExpressMultiplier(t *testing.T) {
	tpl := validTemplate()
	tpl.HasExpressOption = true
	tpl.ExpressMultiplier = 1
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected express multiplier error")
	}
	tpl.ExpressMultiplier = 1.5
	if err := tpl.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateFieldKeys(t *testing.T) {
	tpl := validTemplate()
	tpl.Fields = append(tpl.Fields, Field{Key: "Bad-Key", Label: "Bad", Type: FieldText})
	if err := tpl.Validate(); err == nil || !strings.Contains(err.Error(), "field key") {
		t.Fatalf("expected field key error, got %v", err)
	}

	tpl = validTemplate()
	tpl.Fields = append(tpl.Fields, Field{Key: "size_factor", Label: "Dup", Type: FieldText})
	if err := tpl.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestValidateDiscountTiers(t *testing.T) {
	bad := 3
	tpl := validTemplate()
	tpl.DiscountTiers = []DiscountTier{{MinQty: 5, MaxQty: &bad, Discount: 10}}
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected tier range error")
	}

	tpl.DiscountTiers = []DiscountTier{{MinQty: 5, Discount: 120}}
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected discount percentage error")
	}
}

func TestValidateQuantityBounds(t *testing.T) {
	minQ, maxQ := 10, 5
	tpl := validTemplate()
	tpl.MinQuantity = &minQ
	tpl.MaxQuantity = &maxQ
	if err := tpl.Validate(); err == nil {
		t.Fatal("expected quantity bound error")
	}
}

func TestFormulaFieldKeys(t *testing.T) {
	tpl := validTemplate()
	tpl.Fields = append(tpl.Fields, Field{Key: "notes", Label: "Notes", Type: FieldText})
	keys := tpl.FormulaFieldKeys()
	if len(keys) != 1 || keys[0] != "size_factor" {
		t.Fatalf("unexpected formula keys %v", keys)
	}
}
