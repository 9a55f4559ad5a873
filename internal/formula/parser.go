package formula

// The formula language is a fixed arithmetic grammar: numbers, identifiers,
// the builtin functions below, six operators, and parentheses. The interpreter
// walks only the AST produced here, so a formula has no structural path to
// anything beyond its variable bindings.

// builtin describes the arity bounds of an allow-listed function.
type builtin struct {
	minArgs int
	maxArgs int // -1 means variadic
}

var builtins = map[string]builtin{
	"floor": {minArgs: 1, maxArgs: 1},
	"ceil":  {minArgs: 1, maxArgs: 1},
	"round": {minArgs: 1, maxArgs: 1},
	"abs":   {minArgs: 1, maxArgs: 1},
	"sqrt":  {minArgs: 1, maxArgs: 1},
	"pow":   {minArgs: 2, maxArgs: 2},
	"min":   {minArgs: 2, maxArgs: -1},
	"max":   {minArgs: 2, maxArgs: -1},
	"if":    {minArgs: 3, maxArgs: 3},
}

// IsBuiltin reports whether name is one of the allow-listed formula functions.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// maxParseDepth bounds parser recursion so pathologically nested expressions
// fail with a recoverable error instead of exhausting the stack.
const maxParseDepth = 200

type expr interface {
	eval(bindings map[string]float64) (float64, error)
}

type numberExpr float64

type varExpr struct {
	name string
}

type unaryExpr struct {
	operand expr
}

type binaryExpr struct {
	op    byte
	left  expr
	right expr
}

type callExpr struct {
	fn   string
	args []expr
}

type parser struct {
	tokens []token
	pos    int
	depth  int
}

// parse builds an AST from the token stream produced by lex.
func parse(tokens []token) (expr, *Error) {
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, newError(CodeSyntax, tok.text, "unexpected %q at position %d", tok.text, tok.pos)
	}
	return root, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) enter() *Error {
	p.depth++
	if p.depth > maxParseDepth {
		return newError(CodeTooDeep, "", "expression nesting exceeds %d levels", maxParseDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// parseExpr handles binary + and -.
func (p *parser) parseExpr() (expr, *Error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: tok.text[0], left: left, right: right}
	}
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (expr, *Error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: tok.text[0], left: left, right: right}
	}
}

// parseUnary handles prefix minus. Exponentiation binds tighter, so -2^2
// parses as -(2^2).
func (p *parser) parseUnary() (expr, *Error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if tok := p.peek(); tok.kind == tokOperator && tok.text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower handles right-associative ^.
func (p *parser) parsePower() (expr, *Error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokOperator && tok.text == "^" {
		p.next()
		// The exponent re-enters parseUnary so expressions like 2^-1 work.
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryExpr{op: '^', left: base, right: exponent}, nil
	}
	return base, nil
}

func (p *parser) parseAtom() (expr, *Error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return numberExpr(tok.val), nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(tok)
		}
		return &varExpr{name: tok.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, newError(CodeUnbalancedParens, closing.text, "expected closing parenthesis at position %d", closing.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, newError(CodeSyntax, "", "unexpected end of formula")
	default:
		return nil, newError(CodeSyntax, tok.text, "unexpected %q at position %d", tok.text, tok.pos)
	}
}

func (p *parser) parseCall(name token) (expr, *Error) {
	spec, ok := builtins[name.text]
	if !ok {
		return nil, newError(CodeUnknownFunction, name.text, "unknown function %q", name.text)
	}
	p.next() // consume (

	args := make([]expr, 0, spec.minArgs)
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, newError(CodeUnbalancedParens, closing.text, "expected closing parenthesis for %s()", name.text)
	}

	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		if spec.maxArgs == spec.minArgs {
			return nil, newError(CodeSyntax, name.text, "%s() expects %d argument(s), got %d", name.text, spec.minArgs, len(args))
		}
		return nil, newError(CodeSyntax, name.text, "%s() expects at least %d arguments, got %d", name.text, spec.minArgs, len(args))
	}
	return &callExpr{fn: name.text, args: args}, nil
}
