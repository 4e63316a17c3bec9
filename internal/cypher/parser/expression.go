package parser

import (
	"strconv"

	"github.com/cyphersql/core/internal/cypher/ast"
)

// parseExpression is the grammar entry point: OR is the lowest-precedence
// binary level, matching the precedence table in spec.md §4.1. Grounded on
// trigo/pkg/sparql/parser's parseLogicalOrExpression -> ... -> primary
// chain.
func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.s.SkipWhitespaceAndComments()
		// "OR" must not match the prefix of "ORDER" (spec.md §4.1);
		// MatchKeyword already guards on identifier-continuation so
		// "ORDER" never matches the keyword "OR".
		if !p.s.MatchKeyword("OR") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.OperatorApplication{Operator: ast.OpOr, Operands: []ast.Expression{left, right}}
	}
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.s.MatchKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.OperatorApplication{Operator: ast.OpAnd, Operands: []ast.Expression{left, right}}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.s.MatchKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.OperatorApplication{Operator: ast.OpNot, Operands: []ast.Expression{operand}}, nil
	}
	return p.parseComparison()
}

var comparisonKeywordOps = []struct {
	keyword string
	op      ast.Operator
}{
	{"STARTS WITH", ast.OpStartsWith},
	{"ENDS WITH", ast.OpEndsWith},
	{"CONTAINS", ast.OpContains},
	{"NOT IN", ast.OpNotIn},
	{"IN", ast.OpIn},
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		if op, ok := p.matchComparisonSymbol(); ok {
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.OperatorApplication{Operator: op, Operands: []ast.Expression{left, right}}
			continue
		}
		matchedKeyword := false
		for _, c := range comparisonKeywordOps {
			if p.s.MatchKeyword(c.keyword) {
				right, err := p.parseAdditive()
				if err != nil {
					return nil, err
				}
				left = &ast.OperatorApplication{Operator: c.op, Operands: []ast.Expression{left, right}}
				matchedKeyword = true
				break
			}
		}
		if matchedKeyword {
			continue
		}
		return left, nil
	}
}

func (p *Parser) matchComparisonSymbol() (ast.Operator, bool) {
	p.s.SkipWhitespaceAndComments()
	// reject bare operator keywords at expression position handled by
	// callers requiring a left operand first; symbols are unambiguous.
	switch {
	case p.s.MatchLiteral(">="):
		return ast.OpGreaterThanOrEqual, true
	case p.s.MatchLiteral("<="):
		return ast.OpLessThanOrEqual, true
	case p.s.MatchLiteral("<>"):
		return ast.OpNotEqual, true
	case p.s.MatchLiteral("!="):
		return ast.OpNotEqual, true
	case p.s.MatchLiteral("=~"):
		return ast.OpRegexMatch, true
	case p.s.MatchLiteral("="):
		return ast.OpEqual, true
	case p.s.MatchLiteral("<"):
		return ast.OpLessThan, true
	case p.s.MatchLiteral(">"):
		return ast.OpGreaterThan, true
	}
	return 0, false
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		p.s.SkipWhitespaceAndComments()
		var op ast.Operator
		switch {
		case p.s.PeekLiteral("+"):
			op = ast.OpAdd
		case p.s.PeekLiteral("-"):
			op = ast.OpSubtract
		default:
			return left, nil
		}
		p.s.Advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.OperatorApplication{Operator: op, Operands: []ast.Expression{left, right}}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.s.SkipWhitespaceAndComments()
		var op ast.Operator
		switch {
		case p.s.PeekLiteral("*"):
			op = ast.OpMultiply
		case p.s.PeekLiteral("/"):
			op = ast.OpDivide
		case p.s.PeekLiteral("%"):
			op = ast.OpModulo
		case p.s.PeekLiteral("^"):
			op = ast.OpExponent
		default:
			return left, nil
		}
		p.s.Advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.OperatorApplication{Operator: op, Operands: []ast.Expression{left, right}}
	}
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	p.s.SkipWhitespaceAndComments()
	if p.s.MatchKeyword("DISTINCT") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.OperatorApplication{Operator: ast.OpDistinct, Operands: []ast.Expression{operand}}, nil
	}
	if p.s.PeekLiteral("-") {
		p.s.Advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.OperatorApplication{Operator: ast.OpNeg, Operands: []ast.Expression{operand}}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.s.MatchKeyword("IS") {
			if p.s.MatchKeyword("NOT") {
				if !p.s.MatchKeyword("NULL") {
					return nil, p.fail("expected NULL after IS NOT")
				}
				expr = &ast.OperatorApplication{Operator: ast.OpIsNotNull, Operands: []ast.Expression{expr}}
				continue
			}
			if !p.s.MatchKeyword("NULL") {
				return nil, p.fail("expected NULL after IS")
			}
			expr = &ast.OperatorApplication{Operator: ast.OpIsNull, Operands: []ast.Expression{expr}}
			continue
		}
		if p.s.PeekLiteral("[") {
			sliced, err := p.parseSlice(expr)
			if err != nil {
				return nil, err
			}
			expr = sliced
			continue
		}
		return expr, nil
	}
}

// parseSlice parses the postfix `list[from..to]` range-slice form
// (spec.md §4.5). Either bound may be omitted (`list[..to]`,
// `list[from..]`) but the `..` separator is always required; a bare
// `list[i]` single-index subscript is not part of the grammar.
func (p *Parser) parseSlice(list ast.Expression) (ast.Expression, error) {
	p.s.MatchLiteral("[")

	var from, to ast.Expression
	if !p.s.PeekLiteral("..") {
		var err error
		from, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if !p.s.MatchLiteral("..") {
		return nil, p.fail("expected '..' in slice expression")
	}
	if !p.s.PeekLiteral("]") {
		var err error
		to, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if !p.s.MatchLiteral("]") {
		return nil, p.fail("expected ']' to close slice expression")
	}

	return &ast.SliceExpression{List: list, From: from, To: to}, nil
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	p.s.SkipWhitespaceAndComments()

	if p.s.PeekLiteral("(") {
		// Could be a parenthesized expression or a node pattern used in an
		// EXISTS/comprehension context; try the expression form first.
		save := p.s.Pos
		p.s.Advance()
		expr, err := p.parseExpression()
		if err == nil && p.s.MatchLiteral(")") {
			return expr, nil
		}
		p.s.Pos = save
	}

	if p.s.PeekKeyword("NOT") {
		return nil, p.fail("unexpected NOT at expression position")
	}
	if p.s.PeekKeyword("AND") || p.s.PeekKeyword("OR") {
		return nil, p.fail("unexpected binary operator keyword at expression position")
	}

	if p.s.PeekKeyword("CASE") {
		return p.parseCase()
	}
	if p.s.PeekKeyword("REDUCE") {
		return p.parseReduce()
	}
	if p.s.PeekKeyword("EXISTS") {
		return p.parseExists()
	}
	if p.s.PeekKeyword("NULL") {
		p.s.MatchKeyword("NULL")
		return &ast.Literal{Kind: ast.LitNull}, nil
	}
	if p.s.PeekKeyword("TRUE") {
		p.s.MatchKeyword("TRUE")
		return &ast.Literal{Kind: ast.LitBoolean, Bool: true}, nil
	}
	if p.s.PeekKeyword("FALSE") {
		p.s.MatchKeyword("FALSE")
		return &ast.Literal{Kind: ast.LitBoolean, Bool: false}, nil
	}

	if p.s.PeekLiteral("$") {
		return p.parseParameter()
	}
	if p.s.PeekLiteral("[") {
		return p.parseListLiteralOrComprehension()
	}
	if p.s.PeekLiteral("{") {
		return p.parseMapLiteral()
	}
	if p.s.PeekLiteral("'") || p.s.PeekLiteral("\"") {
		str, ok := p.s.StringLiteral()
		if !ok {
			return nil, p.fail("invalid string literal")
		}
		return &ast.Literal{Kind: ast.LitString, Str: str}, nil
	}
	if isDigitAhead(p.s.Peek()) {
		return p.parseNumber()
	}

	// Could be a path pattern used as an expression, e.g. inside EXISTS or
	// a pattern comprehension's source — try that before falling back to
	// variable/function-call parsing.
	if p.s.PeekLiteral("(") || p.s.PeekKeyword("shortestPath") || p.s.PeekKeyword("allShortestPaths") {
		if pp, ok, err := p.tryParsePathPatternExpression(); err != nil {
			return nil, err
		} else if ok {
			return &ast.PathPatternExpression{Pattern: pp}, nil
		}
	}

	return p.parseVariableOrCallOrProperty()
}

func isDigitAhead(b byte) bool { return b >= '0' && b <= '9' }

func (p *Parser) parseParameter() (ast.Expression, error) {
	p.s.Advance() // '$'
	name, ok := p.s.Identifier()
	if !ok {
		return nil, p.fail("expected parameter name after $")
	}
	// Temporal accessor desugaring: $param.year -> year($param), per
	// spec.md §4.1.
	for _, accessor := range temporalAccessors {
		if p.s.PeekLiteral(".") {
			save := p.s.Pos
			p.s.Advance()
			if ident, ok := p.s.Identifier(); ok && ident == accessor {
				return &ast.FunctionCall{Name: accessor, Args: []ast.Expression{&ast.Parameter{Name: name}}}, nil
			}
			p.s.Pos = save
		}
	}
	return &ast.Parameter{Name: name}, nil
}

var temporalAccessors = []string{
	"year", "month", "day", "hour", "minute", "second",
	"millisecond", "microsecond", "nanosecond",
}

func (p *Parser) parseNumber() (ast.Expression, error) {
	lexeme, isFloat, ok := p.s.Number()
	if !ok {
		return nil, p.fail("expected number")
	}
	if isFloat {
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return nil, p.fail("invalid float literal")
		}
		return &ast.Literal{Kind: ast.LitFloat, Text: lexeme, Float: f}, nil
	}
	i, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return nil, p.fail("invalid integer literal")
	}
	return &ast.Literal{Kind: ast.LitInteger, Text: lexeme, Int: i}, nil
}

func (p *Parser) parseListLiteralOrComprehension() (ast.Expression, error) {
	p.s.Advance() // '['
	p.s.SkipWhitespaceAndComments()

	// Pattern comprehension: [(a)-[:R]->(b) | b.name] or with WHERE.
	if p.s.PeekLiteral("(") {
		if pp, ok, err := p.tryParsePathPatternExpression(); err != nil {
			return nil, err
		} else if ok {
			comp := &ast.PatternComprehension{Pattern: pp}
			if p.s.MatchKeyword("WHERE") {
				where, err := p.parseExpression()
				if err != nil {
					return nil, wrap("Error in pattern comprehension WHERE", err)
				}
				comp.Where = where
			}
			if !p.s.MatchLiteral("|") {
				return nil, &UnsupportedError{Construct: "pattern comprehension without projection"}
			}
			proj, err := p.parseExpression()
			if err != nil {
				return nil, wrap("Error in pattern comprehension projection", err)
			}
			comp.Projection = proj
			if !p.s.MatchLiteral("]") {
				return nil, p.fail("expected ']' to close pattern comprehension")
			}
			return comp, nil
		}
	}

	list := &ast.ListLiteral{}
	if p.s.PeekLiteral("]") {
		p.s.Advance()
		return list, nil
	}
	for {
		item, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in list literal", err)
		}
		list.Items = append(list.Items, item)
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	if !p.s.MatchLiteral("]") {
		return nil, p.fail("expected ']' to close list literal")
	}
	return list, nil
}

func (p *Parser) parseMapLiteral() (ast.Expression, error) {
	p.s.Advance() // '{'
	m := &ast.MapLiteral{}
	p.s.SkipWhitespaceAndComments()
	if p.s.PeekLiteral("}") {
		p.s.Advance()
		return m, nil
	}
	for {
		key, ok := p.s.Identifier()
		if !ok {
			return nil, p.fail("expected map key")
		}
		if !p.s.MatchLiteral(":") {
			return nil, p.fail("expected ':' in map literal")
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in map literal", err)
		}
		m.Entries = append(m.Entries, ast.MapEntry{Key: key, Value: value})
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	if !p.s.MatchLiteral("}") {
		return nil, p.fail("expected '}' to close map literal")
	}
	return m, nil
}

func (p *Parser) parseCase() (ast.Expression, error) {
	p.s.MatchKeyword("CASE")
	c := &ast.CaseExpression{}
	if !p.s.PeekKeyword("WHEN") {
		scrutinee, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in CASE scrutinee", err)
		}
		c.Scrutinee = scrutinee
	}
	for p.s.MatchKeyword("WHEN") {
		when, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in CASE WHEN", err)
		}
		if !p.s.MatchKeyword("THEN") {
			return nil, p.fail("expected THEN in CASE")
		}
		then, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in CASE THEN", err)
		}
		c.Branches = append(c.Branches, ast.WhenThen{When: when, Then: then})
	}
	if p.s.MatchKeyword("ELSE") {
		elseExpr, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in CASE ELSE", err)
		}
		c.Else = elseExpr
	}
	if !p.s.MatchKeyword("END") {
		return nil, p.fail("expected END to close CASE")
	}
	return c, nil
}

func (p *Parser) parseReduce() (ast.Expression, error) {
	p.s.MatchKeyword("REDUCE")
	if !p.s.MatchLiteral("(") {
		return nil, p.fail("expected '(' after REDUCE")
	}
	acc, ok := p.s.Identifier()
	if !ok {
		return nil, p.fail("expected accumulator name in REDUCE")
	}
	if !p.s.MatchLiteral("=") {
		return nil, p.fail("expected '=' after REDUCE accumulator")
	}
	init, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in REDUCE init", err)
	}
	if !p.s.MatchLiteral(",") {
		return nil, p.fail("expected ',' in REDUCE")
	}
	varName, ok := p.s.Identifier()
	if !ok {
		return nil, p.fail("expected element name in REDUCE")
	}
	if !p.s.MatchKeyword("IN") {
		return nil, p.fail("expected IN in REDUCE")
	}
	list, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in REDUCE list", err)
	}
	if !p.s.MatchLiteral("|") {
		return nil, p.fail("expected '|' in REDUCE")
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in REDUCE body", err)
	}
	if !p.s.MatchLiteral(")") {
		return nil, p.fail("expected ')' to close REDUCE")
	}
	return &ast.Reduce{Accumulator: acc, Init: init, Variable: varName, List: list, Body: body}, nil
}

// parseExists parses `EXISTS { pattern [WHERE expr] }`. NOT EXISTS is
// handled at the parseNot level (NOT wraps the ExistsSubquery in an OpNot
// application) rather than here; ExistsSubquery.Negated is never set by
// this parser.
func (p *Parser) parseExists() (ast.Expression, error) {
	p.s.MatchKeyword("EXISTS")
	if !p.s.MatchLiteral("{") {
		return nil, p.fail("expected '{' after EXISTS")
	}
	pp, err := p.parsePathPattern()
	if err != nil {
		return nil, wrap("Error in EXISTS pattern", err)
	}
	ex := &ast.ExistsSubquery{Pattern: pp}
	if p.s.MatchKeyword("WHERE") {
		where, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in EXISTS WHERE", err)
		}
		ex.Where = where
	}
	if !p.s.MatchLiteral("}") {
		return nil, p.fail("expected '}' to close EXISTS")
	}
	return ex, nil
}

// tryParsePathPatternExpression attempts to parse a path pattern at the
// current position, restoring position and reporting ok=false if it isn't
// one (so callers can fall back to other primary forms).
func (p *Parser) tryParsePathPatternExpression() (*ast.PathPattern, bool, error) {
	save := p.s.Pos
	pp, err := p.parsePathPattern()
	if err != nil {
		p.s.Pos = save
		return nil, false, nil
	}
	return pp, true, nil
}

// parseVariableOrCallOrProperty parses a bare identifier/dotted-name and
// then looks ahead for `(` (function call), `.` (property access), or a
// label expression `var:Label`.
func (p *Parser) parseVariableOrCallOrProperty() (ast.Expression, error) {
	start := p.s.Pos
	name, ok := p.s.DottedIdentifier()
	if !ok {
		return nil, p.fail("expected expression")
	}

	if p.s.PeekLiteral("(") {
		return p.parseFunctionCallArgs(name)
	}

	// Not a call: re-read only the leading identifier so that each `.key`
	// segment below becomes its own PropertyAccess.
	p.s.Pos = start
	name, _ = p.s.Identifier()

	var expr ast.Expression = &ast.Variable{Name: name}

	for {
		if p.s.PeekLiteral(".") {
			save := p.s.Pos
			p.s.Advance()
			key, ok := p.s.Identifier()
			if !ok {
				p.s.Pos = save
				break
			}
			expr = &ast.PropertyAccess{Base: expr, Key: key}
			continue
		}
		break
	}
	return expr, nil
}

func (p *Parser) parseFunctionCallArgs(name string) (ast.Expression, error) {
	p.s.MatchLiteral("(")
	call := &ast.FunctionCall{Name: name}
	p.s.SkipWhitespaceAndComments()
	if p.s.MatchKeyword("DISTINCT") {
		call.Distinct = true
	}
	if p.s.PeekLiteral(")") {
		p.s.Advance()
		return call, nil
	}
	if p.s.PeekLiteral("*") {
		p.s.Advance()
		call.Args = append(call.Args, &ast.Variable{Name: "*"})
		if !p.s.MatchLiteral(")") {
			return nil, p.fail("expected ')' after '*' argument")
		}
		return call, nil
	}
	for {
		if lam, ok, err := p.tryParseLambda(); err != nil {
			return nil, err
		} else if ok {
			call.Args = append(call.Args, lam)
		} else {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, wrap("Error in function call arguments", err)
			}
			call.Args = append(call.Args, arg)
		}
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	if !p.s.MatchLiteral(")") {
		return nil, p.fail("expected ')' to close function call")
	}
	return call, nil
}

// tryParseLambda recognizes `x -> body` and `(x, y) -> body` lambda forms
// accepted as function arguments (spec.md §4.1).
func (p *Parser) tryParseLambda() (ast.Expression, bool, error) {
	save := p.s.Pos
	var params []string
	if p.s.PeekLiteral("(") {
		p.s.Advance()
		for {
			id, ok := p.s.Identifier()
			if !ok {
				p.s.Pos = save
				return nil, false, nil
			}
			params = append(params, id)
			if p.s.MatchLiteral(",") {
				continue
			}
			break
		}
		if !p.s.MatchLiteral(")") {
			p.s.Pos = save
			return nil, false, nil
		}
	} else if id, ok := p.s.Identifier(); ok {
		params = []string{id}
	} else {
		p.s.Pos = save
		return nil, false, nil
	}
	if !p.s.MatchLiteral("->") {
		p.s.Pos = save
		return nil, false, nil
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, false, wrap("Error in lambda body", err)
	}
	return &ast.Lambda{Params: params, Body: body}, true, nil
}
