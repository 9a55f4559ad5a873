package formula

import (
	"strings"
	"testing"
)

func TestValidateAcceptsDeclaredVariablesAndBuiltins(t *testing.T) {
	result := Validate("(width_cm*height_cm/10000)*unit_m2_price + max(base_price, 10)", []string{"width_cm", "height_cm", "unit_m2_price"})
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateEmptyFormula(t *testing.T) {
	result := Validate("   \n ", nil)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected a single error, got %v", result.Errors)
	}
}

func TestValidateParentheses(t *testing.T) {
	result := Validate("(1 + 2))", nil)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "closing parenthesis") {
		t.Fatalf("expected closing-parenthesis error, got %v", result.Errors)
	}

	result = Validate("((1 + 2)", nil)
	if !containsSubstring(result.Errors, "unclosed") {
		t.Fatalf("expected unclosed error, got %v", result.Errors)
	}
}

func TestValidateForbiddenKeywords(t *testing.T) {
	for _, formula := range []string{"eval(1)", "constructor + 1", "1 + __proto__"} {
		result := Validate(formula, nil)
		if result.Valid {
			t.Fatalf("expected %q to be rejected", formula)
		}
		if !containsSubstring(result.Errors, "forbidden keyword") {
			t.Fatalf("expected forbidden keyword error for %q, got %v", formula, result.Errors)
		}
	}
}

func TestValidateKeywordInsideIdentifierAllowed(t *testing.T) {
	result := Validate("evaluation_factor * 2", []string{"evaluation_factor"})
	if !result.Valid {
		t.Fatalf("identifier containing a keyword substring must pass, got %v", result.Errors)
	}
}

func TestValidateUnknownFunction(t *testing.T) {
	result := Validate("cbrt(8)", nil)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, `unknown function "cbrt"`) {
		t.Fatalf("expected unknown function error, got %v", result.Errors)
	}
}

func TestValidateUnknownVariableListsAvailable(t *testing.T) {
	result := Validate("width * 2", []string{"height_cm"})
	if result.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, `unknown variable "width"`) && strings.Contains(msg, "height_cm") && strings.Contains(msg, "base_price") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unknown variable error listing available names, got %v", result.Errors)
	}
}

func TestValidateUnusedFieldWarns(t *testing.T) {
	result := Validate("width_cm * 2", []string{"width_cm", "height_cm"})
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}
	if !containsSubstring(result.Warnings, `"height_cm"`) {
		t.Fatalf("expected unused-field warning, got %v", result.Warnings)
	}
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	result := Validate("(cbrt(width) + unknown_one", []string{"height_cm"})
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) < 3 {
		t.Fatalf("expected aggregated errors (parens, function, variables), got %v", result.Errors)
	}
}

func TestValidateSystemVariableAllowed(t *testing.T) {
	result := Validate("base_price * 1.2", nil)
	if !result.Valid {
		t.Fatalf("expected base_price to be allowed, got %v", result.Errors)
	}
}

func containsSubstring(messages []string, needle string) bool {
	for _, msg := range messages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
