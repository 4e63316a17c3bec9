package parser

import (
	"strconv"
	"strings"
	"testing"

	"github.com/cyphersql/core/internal/cypher/ast"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	stmt, err := Parse("MATCH (u:User) WHERE u.age > 25 RETURN u.name LIMIT 10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(stmt.Queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(stmt.Queries))
	}
	q := stmt.Queries[0]
	if len(q.Match) != 1 {
		t.Fatalf("expected 1 MATCH clause, got %d", len(q.Match))
	}
	if q.Match[0].Pattern.Start.Name != "u" {
		t.Errorf("node name = %q, want u", q.Match[0].Pattern.Start.Name)
	}
	if q.Match[0].Where == nil {
		t.Errorf("expected the WHERE to attach to the MATCH clause")
	}
	if q.Return == nil || len(q.Return.Items) != 1 {
		t.Fatalf("expected 1 RETURN item")
	}
	if q.Limit == nil {
		t.Errorf("expected a LIMIT clause")
	}
}

func TestParseOptionalMatchAttachesLocalWhere(t *testing.T) {
	stmt, err := Parse("MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b:Person) WHERE b.age > 30 RETURN a, b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q := stmt.Queries[0]
	if len(q.OptionalMatch) != 1 {
		t.Fatalf("expected 1 OPTIONAL MATCH, got %d", len(q.OptionalMatch))
	}
	if q.OptionalMatch[0].Where == nil {
		t.Errorf("expected WHERE to attach to the OPTIONAL MATCH, not the outer query")
	}
	if q.Where != nil {
		t.Errorf("expected the outer query WHERE to stay nil")
	}
}

func TestParseVariableLengthPath(t *testing.T) {
	stmt, err := Parse("MATCH (u1:User)-[:FOLLOWS*1..3]->(u2:User) RETURN u1.name, u2.name")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rel := stmt.Queries[0].Match[0].Pattern.Chain[0].Relationship
	if rel.VariableLength == nil {
		t.Fatalf("expected a variable-length spec on the relationship")
	}
	if rel.VariableLength.MinHops == nil || *rel.VariableLength.MinHops != 1 {
		t.Errorf("min hops = %v, want 1", rel.VariableLength.MinHops)
	}
	if rel.VariableLength.MaxHops == nil || *rel.VariableLength.MaxHops != 3 {
		t.Errorf("max hops = %v, want 3", rel.VariableLength.MaxHops)
	}
}

func TestParseInvertedRangeFails(t *testing.T) {
	_, err := Parse("MATCH (a)-[:R*5..2]->(b) RETURN b")
	if err == nil {
		t.Fatalf("expected an inverted-range error")
	}
}

func TestParseRelationshipChainDepthLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("MATCH (n0)")
	for i := 1; i <= MaxChainDepth+5; i++ {
		b.WriteString("-[:R]->(n")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(")")
	}
	b.WriteString(" RETURN n0")

	_, err := Parse(b.String())
	if err == nil {
		t.Fatalf("expected a depth-limit error for an excessively long chain")
	}
	if !strings.Contains(err.Error(), "depth") {
		t.Fatalf("expected a depth-limit-flavored error, got %v", err)
	}
}

func TestParseWithAggregateAndHaving(t *testing.T) {
	stmt, err := Parse("MATCH (u:User)-[:FOLLOWS]->(f:User) WITH u, count(f) AS fcount WHERE fcount > 5 RETURN u.name, fcount")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q := stmt.Queries[0]
	if q.With == nil {
		t.Fatalf("expected a WITH clause")
	}
	if len(q.With.Items) != 2 {
		t.Fatalf("expected 2 WITH items, got %d", len(q.With.Items))
	}
	if q.With.Where == nil {
		t.Errorf("expected the WHERE after WITH to attach to the WITH clause")
	}
}

func TestParseUnionRequiresMatchingBranchShape(t *testing.T) {
	stmt, err := Parse("CALL db.labels() YIELD label RETURN label UNION ALL CALL db.relTypes() YIELD type AS label RETURN label")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(stmt.Queries) != 2 {
		t.Fatalf("expected 2 UNION branches, got %d", len(stmt.Queries))
	}
	if stmt.Unions[0].Type != ast.UnionAll {
		t.Errorf("expected UNION ALL, got %v", stmt.Unions[0].Type)
	}
}

func TestParseTrailingInputFails(t *testing.T) {
	_, err := Parse("RETURN 1 garbage")
	if err == nil {
		t.Fatalf("expected a trailing-input error")
	}
}

func TestParseUnwindClause(t *testing.T) {
	stmt, err := Parse("UNWIND [1, 2, 3] AS x RETURN x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q := stmt.Queries[0]
	if len(q.Unwind) != 1 {
		t.Fatalf("expected 1 UNWIND clause, got %d", len(q.Unwind))
	}
	if q.Unwind[0].Alias != "x" {
		t.Errorf("UNWIND alias = %q, want x", q.Unwind[0].Alias)
	}
}

func TestParseSliceExpression(t *testing.T) {
	stmt, err := Parse("UNWIND [1, 2, 3] AS x RETURN x.labels[1..3]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	item := stmt.Queries[0].Return.Items[0]
	sl, ok := item.Expression.(*ast.SliceExpression)
	if !ok {
		t.Fatalf("expected *ast.SliceExpression, got %T", item.Expression)
	}
	if _, ok := sl.List.(*ast.PropertyAccess); !ok {
		t.Errorf("expected the sliced list to be x.labels, got %T", sl.List)
	}
	from, ok := sl.From.(*ast.Literal)
	if !ok || from.Int != 1 {
		t.Errorf("From = %+v, want literal 1", sl.From)
	}
	to, ok := sl.To.(*ast.Literal)
	if !ok || to.Int != 3 {
		t.Errorf("To = %+v, want literal 3", sl.To)
	}
}

func TestParseSliceExpressionOpenBounds(t *testing.T) {
	stmt, err := Parse("UNWIND [1, 2, 3] AS x RETURN x.labels[..3], x.labels[1..]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	items := stmt.Queries[0].Return.Items
	head, ok := items[0].Expression.(*ast.SliceExpression)
	if !ok {
		t.Fatalf("expected *ast.SliceExpression, got %T", items[0].Expression)
	}
	if head.From != nil {
		t.Errorf("expected a nil lower bound for [..3], got %+v", head.From)
	}
	tail, ok := items[1].Expression.(*ast.SliceExpression)
	if !ok {
		t.Fatalf("expected *ast.SliceExpression, got %T", items[1].Expression)
	}
	if tail.To != nil {
		t.Errorf("expected a nil upper bound for [1..], got %+v", tail.To)
	}
}

func TestParseShortestPath(t *testing.T) {
	stmt, err := Parse("MATCH p = shortestPath((a:User)-[:FOLLOWS*]->(b:User)) RETURN p")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pattern := stmt.Queries[0].Match[0].Pattern
	if pattern.Kind != ast.PathKindShortest {
		t.Errorf("pattern kind = %v, want PathKindShortest", pattern.Kind)
	}
	if pattern.Wrapped == nil {
		t.Fatalf("expected a wrapped inner pattern")
	}
}
