package formula

import (
	"errors"
	"fmt"
)

// Error codes surfaced to API callers when a formula cannot be validated or evaluated.
const (
	CodeEmptyFormula     = "EMPTY_FORMULA"
	CodeUnbalancedParens = "UNBALANCED_PARENTHESES"
	CodeForbiddenKeyword = "FORBIDDEN_KEYWORD"
	CodeUnknownFunction  = "UNKNOWN_FUNCTION"
	CodeUnknownVariable  = "UNKNOWN_VARIABLE"
	CodeSyntax           = "SYNTAX_ERROR"
	CodeNonFiniteResult  = "NON_FINITE_RESULT"
	CodeTooDeep          = "EXPRESSION_TOO_DEEP"
)

// Error describes why a formula failed to parse or evaluate. Token carries the
// offending identifier or operator when one is known. Evaluation failures are
// always recoverable at the call site; the engine never panics on merchant input.
type Error struct {
	Code    string
	Token   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// IsFormulaError reports whether err originated from formula parsing or evaluation.
func IsFormulaError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

func newError(code, token, format string, args ...any) *Error {
	return &Error{Code: code, Token: token, Message: fmt.Sprintf(format, args...)}
}
