package parser

import (
	"strconv"

	"github.com/cyphersql/core/internal/cypher/ast"
)

// parsePathPattern recognizes shortestPath/allShortestPaths wrappers, then
// a node pattern optionally followed by a chain of relationship+node hops
// (spec.md §4.1 path-pattern parser).
func (p *Parser) parsePathPattern() (*ast.PathPattern, error) {
	start := p.s.Pos
	if p.s.MatchKeyword("shortestPath") {
		return p.parseWrappedPath(ast.PathKindShortest, start)
	}
	if p.s.MatchKeyword("allShortestPaths") {
		return p.parseWrappedPath(ast.PathKindAllShortest, start)
	}
	return p.parseConnectedPattern(start)
}

func (p *Parser) parseWrappedPath(kind ast.PathPatternKind, start int) (*ast.PathPattern, error) {
	if !p.s.MatchLiteral("(") {
		return nil, p.fail("expected '(' after shortestPath/allShortestPaths")
	}
	inner, err := p.parseConnectedPattern(p.s.Pos)
	if err != nil {
		return nil, wrap("Error in shortestPath pattern", err)
	}
	if !p.s.MatchLiteral(")") {
		return nil, p.fail("expected ')' to close shortestPath/allShortestPaths")
	}
	return &ast.PathPattern{Kind: kind, Wrapped: inner, Span: ast.Span{Start: start, End: p.s.Pos}}, nil
}

func (p *Parser) parseConnectedPattern(start int) (*ast.PathPattern, error) {
	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}

	pp := &ast.PathPattern{Kind: ast.PathKindNode, Start: node, Span: ast.Span{Start: start}}

	depth := 0
	for {
		rel, ok, err := p.tryParseRelationshipPattern()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if depth >= MaxChainDepth {
			return nil, &DepthLimitError{Limit: MaxChainDepth}
		}
		nextNode, err := p.parseNodePattern()
		if err != nil {
			return nil, wrap("Error in relationship chain", err)
		}
		pp.Chain = append(pp.Chain, ast.ConnectedPattern{Relationship: rel, Node: nextNode})
		depth++
	}
	if len(pp.Chain) > 0 {
		pp.Kind = ast.PathKindConnected
	}
	pp.Span.End = p.s.Pos
	return pp, nil
}

// parseNodePattern parses `(name? :Label(|Label)* {props}?)`. Multiple
// labels parse as a vector; a single label becomes a one-element vector
// (spec.md §4.1).
func (p *Parser) parseNodePattern() (*ast.NodePattern, error) {
	p.s.SkipWhitespaceAndComments()
	start := p.s.Pos
	if !p.s.MatchLiteral("(") {
		return nil, p.fail("expected '(' to start node pattern")
	}
	n := &ast.NodePattern{Index: p.arena.alloc()}

	p.s.SkipWhitespaceAndComments()
	if !p.s.PeekLiteral(":") && !p.s.PeekLiteral(")") && !p.s.PeekLiteral("{") {
		if name, ok := p.s.Identifier(); ok {
			n.Name = name
		}
	}

	if p.s.PeekLiteral(":") {
		labels, err := p.parseLabelList()
		if err != nil {
			return nil, err
		}
		n.Labels = labels
	}

	if p.s.PeekLiteral("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, wrap("Error in node properties", err)
		}
		n.Properties = props
	}

	if !p.s.MatchLiteral(")") {
		return nil, p.fail("expected ')' to close node pattern")
	}
	n.Span = ast.Span{Start: start, End: p.s.Pos}
	return n, nil
}

// parseLabelList parses `:A|B|C` into ["A","B","C"].
func (p *Parser) parseLabelList() ([]string, error) {
	var labels []string
	if !p.s.MatchLiteral(":") {
		return labels, nil
	}
	for {
		label, ok := p.s.Identifier()
		if !ok {
			return nil, p.fail("expected label name after ':'")
		}
		labels = append(labels, label)
		if !p.s.PeekLiteral("|") {
			break
		}
		// `|` continues the label list only when immediately followed by
		// another label (distinguishes `:A|B` from a later `|` used by
		// REDUCE/lambda bodies, which never directly follow a label list
		// in valid Cypher).
		save := p.s.Pos
		p.s.Advance()
		if _, ok := p.s.Identifier(); !ok {
			p.s.Pos = save
			break
		}
		p.s.Pos = save
		p.s.Advance()
	}
	return labels, nil
}

func (p *Parser) parsePropertyMap() ([]ast.Property, error) {
	p.s.MatchLiteral("{")
	var props []ast.Property
	p.s.SkipWhitespaceAndComments()
	if p.s.PeekLiteral("}") {
		p.s.Advance()
		return props, nil
	}
	for {
		if p.s.PeekLiteral("$") {
			p.s.Advance()
			name, ok := p.s.Identifier()
			if !ok {
				return nil, p.fail("expected parameter name in property map")
			}
			props = append(props, ast.Property{Param: name})
		} else {
			key, ok := p.s.Identifier()
			if !ok {
				return nil, p.fail("expected property key")
			}
			if !p.s.MatchLiteral(":") {
				return nil, p.fail("expected ':' after property key")
			}
			value, err := p.parseExpression()
			if err != nil {
				return nil, wrap("Error in property value", err)
			}
			props = append(props, ast.Property{Key: key, Value: value})
		}
		if p.s.MatchLiteral(",") {
			continue
		}
		break
	}
	if !p.s.MatchLiteral("}") {
		return nil, p.fail("expected '}' to close property map")
	}
	return props, nil
}

// tryParseRelationshipPattern distinguishes the six relationship symbol
// forms. Empty-bracket variants (-->, <--, --) are tried first so they
// aren't misparsed as a prefix of the longer bracketed forms (spec.md
// §4.1).
func (p *Parser) tryParseRelationshipPattern() (*ast.RelationshipPattern, bool, error) {
	save := p.s.Pos
	p.s.SkipWhitespaceAndComments()

	switch {
	case p.s.PeekLiteral("<--"):
		p.s.Pos += 3
		return &ast.RelationshipPattern{Direction: ast.Incoming}, true, nil
	case p.s.PeekLiteral("-->"):
		p.s.Pos += 3
		return &ast.RelationshipPattern{Direction: ast.Outgoing}, true, nil
	case p.s.PeekLiteral("<-["):
		p.s.Pos += 2
		rel, err := p.parseRelationshipBody(ast.Incoming, true)
		return rel, err == nil, err
	case p.s.PeekLiteral("-["):
		p.s.Advance()
		// direction determined after closing bracket by trailing arrow
		rel, err := p.parseRelationshipBody(ast.Either, false)
		return rel, err == nil, err
	case p.s.PeekLiteral("--"):
		p.s.Pos += 2
		return &ast.RelationshipPattern{Direction: ast.Either}, true, nil
	}
	p.s.Pos = save
	return nil, false, nil
}

func (p *Parser) parseRelationshipBody(leadingDirection ast.Direction, leadingConsumed bool) (*ast.RelationshipPattern, error) {
	start := p.s.Pos
	if !p.s.MatchLiteral("[") {
		return nil, p.fail("expected '[' in relationship pattern")
	}
	rel := &ast.RelationshipPattern{Direction: leadingDirection}

	p.s.SkipWhitespaceAndComments()
	if !p.s.PeekLiteral(":") && !p.s.PeekLiteral("]") && !p.s.PeekLiteral("*") && !p.s.PeekLiteral("{") {
		if name, ok := p.s.Identifier(); ok {
			rel.Name = name
		}
	}

	if p.s.PeekLiteral(":") {
		types, err := p.parseLabelList()
		if err != nil {
			return nil, err
		}
		rel.Types = types
	}

	if p.s.PeekLiteral("*") {
		spec, err := p.parseVariableLengthSpec()
		if err != nil {
			return nil, err
		}
		rel.VariableLength = spec
	}

	if p.s.PeekLiteral("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, wrap("Error in relationship properties", err)
		}
		rel.Properties = props
	}

	if !p.s.MatchLiteral("]") {
		return nil, p.fail("expected ']' to close relationship pattern")
	}

	// Trailing arrow determines direction for the `-[...]->`/`<-[...]-`/
	// `-[...]-` forms.
	if !leadingConsumed {
		if p.s.MatchLiteral("->") {
			rel.Direction = ast.Outgoing
		} else if p.s.MatchLiteral("-") {
			rel.Direction = ast.Either
		} else {
			return nil, p.fail("expected '-' or '->' after relationship pattern")
		}
	} else {
		if !p.s.MatchLiteral("-") {
			return nil, p.fail("expected '-' after relationship pattern")
		}
	}

	rel.Span = ast.Span{Start: start, End: p.s.Pos}
	return rel, nil
}

// parseVariableLengthSpec parses `*`, `*N`, `*N..M`, `*N..`, `*..M`
// (spec.md §3.1/§4.1/§8).
func (p *Parser) parseVariableLengthSpec() (*ast.VariableLengthSpec, error) {
	p.s.MatchLiteral("*")
	spec := &ast.VariableLengthSpec{}

	minLexeme, minOK := p.readUint()
	hadDots := p.s.PeekLiteral("..")
	if hadDots {
		p.s.Pos += 2
	}
	maxLexeme, maxOK := p.readUint()

	switch {
	case !hadDots && minOK:
		// `*N` == fixed length N: min = max = N.
		n := mustParseUint32(minLexeme)
		spec.MinHops = &n
		spec.MaxHops = &n
	case !hadDots && !minOK:
		// bare `*`: min=1, max=unbounded.
		one := uint32(1)
		spec.MinHops = &one
	case hadDots:
		if minOK {
			n := mustParseUint32(minLexeme)
			spec.MinHops = &n
		}
		if maxOK {
			n := mustParseUint32(maxLexeme)
			spec.MaxHops = &n
		}
	}

	if spec.MinHops != nil && *spec.MinHops == 0 {
		spec.ZeroHopWarning = true
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (p *Parser) readUint() (string, bool) {
	lexeme, isFloat, ok := p.s.Number()
	if !ok || isFloat {
		return "", false
	}
	return lexeme, true
}

func mustParseUint32(s string) uint32 {
	n, _ := strconv.ParseUint(s, 10, 32)
	return uint32(n)
}
