package formula

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Result aggregates every problem found in a formula so the merchant editor
// can display the full list at once.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// SystemVariables are always available to formulas regardless of declared fields.
var SystemVariables = []string{"base_price"}

// forbiddenKeywords is a defense-in-depth textual scan for host-language
// escape attempts pasted in from elsewhere. The primary safety mechanism is
// the fixed grammar: the interpreter walks only the parsed AST.
var forbiddenKeywords = []string{
	"eval",
	"exec",
	"function",
	"import",
	"require",
	"process",
	"global",
	"globalthis",
	"window",
	"document",
	"constructor",
	"prototype",
	"__proto__",
	"this",
}

var literalNames = map[string]bool{
	"true":  true,
	"false": true,
	"null":  true,
}

// Validate statically checks a formula against the declared field keys without
// evaluating it. Errors cover structure and unknown names; warnings flag
// declared fields the formula never uses.
func Validate(formula string, fieldKeys []string) Result {
	result := Result{Errors: []string{}, Warnings: []string{}}

	normalized := normalize(formula)
	if normalized == "" {
		result.Errors = append(result.Errors, "formula is empty")
		return result
	}

	result.Errors = append(result.Errors, parenthesisErrors(normalized)...)
	result.Errors = append(result.Errors, forbiddenKeywordErrors(normalized)...)

	declared := make(map[string]bool, len(fieldKeys))
	for _, key := range fieldKeys {
		declared[strings.TrimSpace(key)] = true
	}
	system := make(map[string]bool, len(SystemVariables))
	for _, name := range SystemVariables {
		system[name] = true
	}

	tokens, lexErr := lex(normalized)
	if lexErr != nil {
		result.Errors = append(result.Errors, lexErr.Message)
	} else {
		used := make(map[string]bool)
		for i, tok := range tokens {
			if tok.kind != tokIdent {
				continue
			}
			isCall := i+1 < len(tokens) && tokens[i+1].kind == tokLParen
			if isCall {
				if !IsBuiltin(tok.text) {
					result.Errors = append(result.Errors,
						fmt.Sprintf("unknown function %q, allowed: %s", tok.text, builtinNames()))
				}
				continue
			}
			if literalNames[tok.text] || system[tok.text] {
				continue
			}
			if declared[tok.text] {
				used[tok.text] = true
				continue
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("unknown variable %q, available: %s", tok.text, availableKeys(fieldKeys)))
		}
		for _, key := range fieldKeys {
			trimmed := strings.TrimSpace(key)
			if trimmed != "" && !used[trimmed] {
				result.Warnings = append(result.Warnings, fmt.Sprintf("field %q is declared but not used in the formula", trimmed))
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// parenthesisErrors performs a single left-to-right scan with a counter.
func parenthesisErrors(formula string) []string {
	var errs []string
	balance := 0
	reportedNegative := false
	for _, c := range formula {
		switch c {
		case '(':
			balance++
		case ')':
			balance--
			if balance < 0 && !reportedNegative {
				errs = append(errs, "closing parenthesis without matching opening parenthesis")
				reportedNegative = true
				balance = 0
			}
		}
	}
	if balance > 0 {
		errs = append(errs, fmt.Sprintf("%d unclosed parenthesis(es)", balance))
	}
	return errs
}

func forbiddenKeywordErrors(formula string) []string {
	var errs []string
	lowered := strings.ToLower(formula)
	for _, keyword := range forbiddenKeywords {
		pattern := regexp.MustCompile(`(^|[^a-z0-9_])` + regexp.QuoteMeta(keyword) + `([^a-z0-9_]|$)`)
		if pattern.MatchString(lowered) {
			errs = append(errs, fmt.Sprintf("forbidden keyword %q", keyword))
		}
	}
	return errs
}

func builtinNames() string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func availableKeys(fieldKeys []string) string {
	names := make([]string, 0, len(fieldKeys)+len(SystemVariables))
	names = append(names, SystemVariables...)
	for _, key := range fieldKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			names = append(names, trimmed)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
