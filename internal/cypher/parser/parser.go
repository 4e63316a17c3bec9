// Package parser implements a recursive-descent parser for a substantial
// subset of openCypher (spec.md §1), producing an internal/cypher/ast tree.
// Structurally grounded on trigo/pkg/sparql/parser.Parser: a single scan
// head, one method per grammar production, `match`/`matchKeyword` lookahead
// helpers, and a top-to-bottom Parse entry point that recognizes the
// statement's leading clause and dispatches to the matching sub-parser.
package parser

import (
	"github.com/cyphersql/core/internal/cypher/ast"
	"github.com/cyphersql/core/internal/cypher/lexer"
)

// MaxChainDepth is the hard depth limit protecting against adversarial
// relationship chains (spec.md §4.1, "a hard depth limit (≥ 50)").
const MaxChainDepth = 64

// nodeArena assigns stable arena indices so that chained
// relationships can share node identity (spec.md §3.1/§9) without pointer
// aliasing tricks.
type nodeArena struct {
	next int
}

func (a *nodeArena) alloc() int {
	i := a.next
	a.next++
	return i
}

// Parser parses one Cypher statement from a string.
type Parser struct {
	s     *lexer.Scanner
	arena nodeArena
}

// New creates a parser over input.
func New(input string) *Parser {
	return &Parser{s: lexer.New(input)}
}

// Parse parses a full CypherStatement, requiring the entire input (modulo
// trailing whitespace and an optional `;`) to be consumed (spec.md
// invariant 1: parse either fully consumes or errors, never partial).
func Parse(input string) (*ast.Statement, error) {
	p := New(input)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.s.SkipWhitespaceAndComments()
	p.s.MatchLiteral(";")
	p.s.SkipWhitespaceAndComments()
	if !p.s.Eof() {
		return nil, p.fail("trailing input after statement")
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (*ast.Statement, error) {
	lead, err := p.parseQuery()
	if err != nil {
		return nil, wrap("Error in query", err)
	}
	stmt := &ast.Statement{Queries: []*ast.Query{lead}}

	for {
		p.s.SkipWhitespaceAndComments()
		if !p.s.MatchKeyword("UNION") {
			break
		}
		unionType := ast.UnionDistinct
		if p.s.MatchKeyword("ALL") {
			unionType = ast.UnionAll
		}
		next, err := p.parseQuery()
		if err != nil {
			return nil, wrap("Error in union query", err)
		}
		stmt.Queries = append(stmt.Queries, next)
		stmt.Unions = append(stmt.Unions, ast.UnionClause{Type: unionType})
	}
	return stmt, nil
}

// parseQuery recognizes the clause sequence described in spec.md §4.1:
// USE? (MATCH|OPTIONAL MATCH)* WHERE? (OPTIONAL MATCH)* CALL? UNWIND*
// WITH? WHERE? CREATE? SET? REMOVE? DELETE? RETURN? ORDER BY? SKIP? LIMIT?
func (p *Parser) parseQuery() (*ast.Query, error) {
	q := &ast.Query{}

	if p.s.PeekKeyword("USE") {
		use, err := p.parseUseClause()
		if err != nil {
			return nil, err
		}
		q.Use = use
	}

	var pendingWhere *ast.WhereClause
	attachPendingWhere := func() {
		if pendingWhere == nil {
			return
		}
		if n := len(q.OptionalMatch); n > 0 && q.OptionalMatch[n-1].Where == nil {
			q.OptionalMatch[n-1].Where = pendingWhere
		} else if n := len(q.Match); n > 0 {
			q.Match[n-1].Where = pendingWhere
		}
		pendingWhere = nil
	}

	for {
		p.s.SkipWhitespaceAndComments()
		switch {
		case p.s.PeekKeyword("OPTIONAL"):
			m, err := p.parseMatchClause(true)
			if err != nil {
				return nil, err
			}
			q.OptionalMatch = append(q.OptionalMatch, m)
		case p.s.PeekKeyword("MATCH"):
			m, err := p.parseMatchClause(false)
			if err != nil {
				return nil, err
			}
			q.Match = append(q.Match, m)
		case p.s.PeekKeyword("WHERE") && q.Where == nil && q.With == nil:
			// A WHERE here attaches to the most recent reading block
			// (SPEC_FULL.md open question 4), recorded via pendingWhere.
			where, err := p.parseWhereClause()
			if err != nil {
				return nil, err
			}
			pendingWhere = where
			attachPendingWhere()
		default:
			goto afterReads
		}
	}
afterReads:

	if p.s.PeekKeyword("CALL") {
		call, err := p.parseCallClause()
		if err != nil {
			return nil, err
		}
		q.Call = call
	}

	for p.s.PeekKeyword("UNWIND") {
		u, err := p.parseUnwindClause()
		if err != nil {
			return nil, err
		}
		q.Unwind = append(q.Unwind, u)
	}

	if p.s.PeekKeyword("WITH") {
		with, err := p.parseWithClause()
		if err != nil {
			return nil, err
		}
		q.With = with
		// WHERE/ORDER BY/SKIP/LIMIT after WITH are parsed as part of the
		// WITH clause itself by parseWithClause.
	}

	if q.With == nil && p.s.PeekKeyword("WHERE") {
		where, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	if p.s.PeekKeyword("CREATE") {
		c, err := p.parseCreateClause()
		if err != nil {
			return nil, err
		}
		q.Create = c
	}

	if p.s.PeekKeyword("SET") {
		s, err := p.parseSetClause()
		if err != nil {
			return nil, err
		}
		q.Set = s
	}

	if p.s.PeekKeyword("REMOVE") {
		r, err := p.parseRemoveClause()
		if err != nil {
			return nil, err
		}
		q.Remove = r
	}

	if p.s.PeekKeyword("DELETE") || p.s.PeekKeyword("DETACH") {
		d, err := p.parseDeleteClause()
		if err != nil {
			return nil, err
		}
		q.Delete = d
	}

	if p.s.PeekKeyword("RETURN") {
		r, err := p.parseReturnClause()
		if err != nil {
			return nil, err
		}
		q.Return = r
	}

	if p.s.PeekKeyword("ORDER") {
		o, err := p.parseOrderByClause()
		if err != nil {
			return nil, err
		}
		q.OrderBy = o
	}
	if p.s.PeekKeyword("SKIP") {
		sk, err := p.parseSkipClause()
		if err != nil {
			return nil, err
		}
		q.Skip = sk
	}
	if p.s.PeekKeyword("LIMIT") {
		l, err := p.parseLimitClause()
		if err != nil {
			return nil, err
		}
		q.Limit = l
	}

	return q, nil
}
