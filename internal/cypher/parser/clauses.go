package parser

import (
	"github.com/cyphersql/core/internal/cypher/ast"
)

func (p *Parser) parseUseClause() (*ast.UseClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("USE")
	name, ok := p.s.DottedIdentifier()
	if !ok {
		return nil, wrap("Error in use clause", p.fail("expected graph name after USE"))
	}
	return &ast.UseClause{GraphName: name, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseMatchClause(optional bool) (*ast.MatchClause, error) {
	start := p.s.Pos
	if optional {
		p.s.MatchKeyword("OPTIONAL")
		if !p.s.MatchKeyword("MATCH") {
			return nil, p.fail("expected MATCH after OPTIONAL")
		}
	} else {
		p.s.MatchKeyword("MATCH")
	}

	m := &ast.MatchClause{}

	// Optional path-variable binding: `p = (a)-[...]->(b)`.
	save := p.s.Pos
	if name, ok := p.s.Identifier(); ok {
		if p.s.MatchLiteral("=") {
			m.PathVariable = name
		} else {
			p.s.Pos = save
		}
	}

	pp, err := p.parsePathPattern()
	if err != nil {
		return nil, wrap("Error in match clause", err)
	}
	m.Pattern = pp
	m.Span = ast.Span{Start: start, End: p.s.Pos}
	return m, nil
}

func (p *Parser) parseWhereClause() (*ast.WhereClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("WHERE")
	pred, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in where clause", err)
	}
	return &ast.WhereClause{Predicate: pred, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseUnwindClause() (*ast.UnwindClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("UNWIND")
	expr, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in unwind clause", err)
	}
	if !p.s.MatchKeyword("AS") {
		return nil, p.fail("expected AS in UNWIND clause")
	}
	alias, ok := p.s.Identifier()
	if !ok {
		return nil, p.fail("expected alias after UNWIND ... AS")
	}
	return &ast.UnwindClause{Expression: expr, Alias: alias, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseProjectionItems() ([]ast.ReturnItem, bool, error) {
	p.s.SkipWhitespaceAndComments()
	if p.s.PeekLiteral("*") {
		p.s.Advance()
		return nil, true, nil
	}
	var items []ast.ReturnItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, false, err
		}
		item := ast.ReturnItem{Expression: expr}
		if p.s.MatchKeyword("AS") {
			alias, ok := p.s.Identifier()
			if !ok {
				return nil, false, p.fail("expected alias after AS")
			}
			item.Alias = alias
		} else if v, ok := expr.(*ast.Variable); ok {
			item.Alias = v.Name
		} else if pa, ok := expr.(*ast.PropertyAccess); ok {
			item.Alias = pa.Key
		}
		items = append(items, item)
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	return items, false, nil
}

func (p *Parser) parseWithClause() (*ast.WithClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("WITH")
	w := &ast.WithClause{}
	if p.s.MatchKeyword("DISTINCT") {
		w.Distinct = true
	}
	items, star, err := p.parseProjectionItems()
	if err != nil {
		return nil, wrap("Error in with clause", err)
	}
	if !star {
		for _, it := range items {
			w.Items = append(w.Items, ast.WithItem{Expression: it.Expression, Alias: it.Alias})
		}
	}

	if p.s.PeekKeyword("WHERE") {
		where, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		w.Where = where
	}
	if p.s.PeekKeyword("ORDER") {
		o, err := p.parseOrderByClause()
		if err != nil {
			return nil, err
		}
		w.OrderBy = o
	}
	if p.s.PeekKeyword("SKIP") {
		sk, err := p.parseSkipClause()
		if err != nil {
			return nil, err
		}
		w.Skip = sk
	}
	if p.s.PeekKeyword("LIMIT") {
		l, err := p.parseLimitClause()
		if err != nil {
			return nil, err
		}
		w.Limit = l
	}
	w.Span = ast.Span{Start: start, End: p.s.Pos}
	return w, nil
}

func (p *Parser) parseReturnClause() (*ast.ReturnClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("RETURN")
	r := &ast.ReturnClause{}
	if p.s.MatchKeyword("DISTINCT") {
		r.Distinct = true
	}
	items, star, err := p.parseProjectionItems()
	if err != nil {
		return nil, wrap("Error in return clause", err)
	}
	r.Star = star
	r.Items = items
	r.Span = ast.Span{Start: start, End: p.s.Pos}
	return r, nil
}

func (p *Parser) parseOrderByClause() (*ast.OrderByClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("ORDER")
	if !p.s.MatchKeyword("BY") {
		return nil, p.fail("expected BY after ORDER")
	}
	o := &ast.OrderByClause{}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in order by clause", err)
		}
		dir := ast.Ascending
		if p.s.MatchKeyword("DESC") || p.s.MatchKeyword("DESCENDING") {
			dir = ast.Descending
		} else {
			p.s.MatchKeyword("ASC")
			p.s.MatchKeyword("ASCENDING")
		}
		o.Items = append(o.Items, ast.OrderItem{Expression: expr, Direction: dir})
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	o.Span = ast.Span{Start: start, End: p.s.Pos}
	return o, nil
}

func (p *Parser) parseSkipClause() (*ast.SkipClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("SKIP")
	expr, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in skip clause", err)
	}
	return &ast.SkipClause{Expression: expr, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseLimitClause() (*ast.LimitClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("LIMIT")
	expr, err := p.parseExpression()
	if err != nil {
		return nil, wrap("Error in limit clause", err)
	}
	return &ast.LimitClause{Expression: expr, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseCreateClause() (*ast.CreateClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("CREATE")
	pp, err := p.parsePathPattern()
	if err != nil {
		return nil, wrap("Error in create clause", err)
	}
	return &ast.CreateClause{Pattern: pp, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseSetClause() (*ast.SetClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("SET")
	s := &ast.SetClause{}
	for {
		target, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in set clause", err)
		}
		if !p.s.MatchLiteral("=") && !p.s.MatchLiteral("+=") {
			return nil, p.fail("expected '=' in SET item")
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in set clause", err)
		}
		s.Items = append(s.Items, ast.SetItem{Target: target, Value: value})
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	s.Span = ast.Span{Start: start, End: p.s.Pos}
	return s, nil
}

func (p *Parser) parseRemoveClause() (*ast.RemoveClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("REMOVE")
	r := &ast.RemoveClause{}
	for {
		target, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in remove clause", err)
		}
		r.Targets = append(r.Targets, target)
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	r.Span = ast.Span{Start: start, End: p.s.Pos}
	return r, nil
}

func (p *Parser) parseDeleteClause() (*ast.DeleteClause, error) {
	start := p.s.Pos
	d := &ast.DeleteClause{}
	if p.s.MatchKeyword("DETACH") {
		d.Detach = true
	}
	if !p.s.MatchKeyword("DELETE") {
		return nil, p.fail("expected DELETE")
	}
	for {
		target, err := p.parseExpression()
		if err != nil {
			return nil, wrap("Error in delete clause", err)
		}
		d.Targets = append(d.Targets, target)
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	d.Span = ast.Span{Start: start, End: p.s.Pos}
	return d, nil
}

func (p *Parser) parseCallClause() (*ast.CallClause, error) {
	start := p.s.Pos
	p.s.MatchKeyword("CALL")
	name, ok := p.s.DottedIdentifier()
	if !ok {
		return nil, wrap("Error in call clause", p.fail("expected procedure name after CALL"))
	}
	c := &ast.CallClause{ProcedureName: name}
	if p.s.MatchLiteral("(") {
		if !p.s.PeekLiteral(")") {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, wrap("Error in call clause arguments", err)
				}
				c.Arguments = append(c.Arguments, ast.CallArgument{Expression: arg})
				if p.s.MatchLiteral(",") {
					continue
				}
				break
			}
		}
		if !p.s.MatchLiteral(")") {
			return nil, p.fail("expected ')' to close call arguments")
		}
	}
	if p.s.MatchKeyword("YIELD") {
		for {
			id, ok := p.s.Identifier()
			if !ok {
				return nil, p.fail("expected identifier in YIELD")
			}
			c.Yield = append(c.Yield, id)
			if p.s.MatchLiteral(",") {
				continue
			}
			break
		}
	}
	c.Span = ast.Span{Start: start, End: p.s.Pos}
	return c, nil
}
