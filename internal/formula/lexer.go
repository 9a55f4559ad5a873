package formula

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
	val  float64
}

// normalize collapses line breaks to spaces so merchants can split long
// formulas over multiple lines without changing their meaning.
func normalize(input string) string {
	replaced := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(input)
	return strings.TrimSpace(replaced)
}

// lex converts the formula text into a token stream. It returns a positioned
// error for the first character it cannot interpret.
func lex(input string) ([]token, *Error) {
	tokens := make([]token, 0, len(input)/2+1)
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
			tokens = append(tokens, token{kind: tokOperator, text: string(c), pos: i})
			i++
		case isDigit(c) || (c == '.' && i+1 < len(input) && isDigit(input[i+1])):
			start := i
			for i < len(input) && isDigit(input[i]) {
				i++
			}
			if i < len(input) && input[i] == '.' {
				i++
				for i < len(input) && isDigit(input[i]) {
					i++
				}
			}
			text := input[start:i]
			val, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, newError(CodeSyntax, text, "invalid number %q at position %d", text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, pos: start, val: val})
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start})
		default:
			return nil, newError(CodeSyntax, string(c), "unexpected character %q at position %d", string(c), i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
