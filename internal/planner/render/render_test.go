package render

import (
	"testing"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cypher/ast"
	"github.com/cyphersql/core/internal/cypher/parser"
	"github.com/cyphersql/core/internal/planner/logical"
)

func testSchema() *catalog.StaticSchema {
	s := catalog.NewStaticSchema()
	s.AddLabel(&catalog.LabelSchema{
		Label: "User", SourceTable: "users", IDColumn: "user_id",
		PropertyMap: map[string]string{"name": "full_name", "age": "age"},
	})
	s.AddRelationshipType(&catalog.RelationshipSchema{
		Type: "FOLLOWS", SourceTable: "user_follows_user",
		FromIDColumn: "follower_id", ToIDColumn: "followee_id",
	})
	return s
}

func buildRenderPlan(t *testing.T, query string) *RenderPlan {
	t.Helper()
	stmt, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("parse(%q): %v", query, err)
	}
	plan, err := logical.BuildStatement(stmt, testSchema(), logical.DefaultOptions())
	if err != nil {
		t.Fatalf("build(%q): %v", query, err)
	}
	if len(plan.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(plan.Branches))
	}
	branch := plan.Branches[0]
	rb := NewBuilder(testSchema(), branch.Ctes, branch.Scope)
	rp, err := rb.Build(branch.Plan)
	if err != nil {
		t.Fatalf("render(%q): %v", query, err)
	}
	return rp
}

func TestBuildSimpleMatchSetsFromAndFilters(t *testing.T) {
	rp := buildRenderPlan(t, "MATCH (u:User) WHERE u.age > 25 RETURN u.name LIMIT 10")

	if rp.From == nil {
		t.Fatalf("expected From to be set")
	}
	if rp.From.Name != "users" {
		t.Errorf("From.Name = %q, want users", rp.From.Name)
	}
	if len(rp.Filters) != 1 {
		t.Errorf("expected 1 filter, got %d", len(rp.Filters))
	}
	if rp.Limit == nil {
		t.Errorf("expected Limit to be set")
	}
	if len(rp.Select.Items) != 1 {
		t.Errorf("expected 1 select item, got %d", len(rp.Select.Items))
	}
}

func TestBuildOptionalMatchKeepsPreFilterOnJoin(t *testing.T) {
	rp := buildRenderPlan(t, "MATCH (a:User) OPTIONAL MATCH (a)-[:FOLLOWS]->(b:User) WHERE b.age > 30 RETURN a.name, b.name")

	var found bool
	for _, j := range rp.Joins {
		if j.JoinType == JoinLeft {
			found = true
			if j.PreFilter == nil {
				t.Errorf("expected the optional join to carry its WHERE as PreFilter")
			}
		}
	}
	if !found {
		t.Fatalf("expected a LEFT JOIN for the optional match")
	}
	if len(rp.Filters) != 0 {
		t.Errorf("expected the optional predicate to stay off the outer WHERE, got %d filters", len(rp.Filters))
	}
}

func TestBuildWithAggregateProducesCteAndGroupBy(t *testing.T) {
	rp := buildRenderPlan(t, "MATCH (u:User)-[:FOLLOWS]->(f:User) WITH u, count(f) AS fcount WHERE fcount > 5 RETURN u.name, fcount")

	if rp.FromCte == "" {
		t.Fatalf("expected FromCte to be set for a WITH boundary")
	}
	if len(rp.Ctes) != 1 {
		t.Fatalf("expected 1 registered CTE, got %d", len(rp.Ctes))
	}
	inner := rp.Ctes[0].Content.Structured
	if inner == nil {
		t.Fatalf("expected the CTE to carry a structured inner plan")
	}
	if len(inner.GroupBy) == 0 {
		t.Errorf("expected the inner plan to carry GROUP BY expressions")
	}
	if inner.Having == nil {
		t.Errorf("expected the inner plan to carry the fcount > 5 HAVING predicate")
	}
}

// Concrete scenario #3 (spec.md §8): a variable-length path renders a
// recursive CTE whose body is appended to RenderPlan.Ctes, not merely
// referenced by name (the prior defect this test guards against).
func TestBuildVariableLengthPathAppendsRecursiveCte(t *testing.T) {
	rp := buildRenderPlan(t, "MATCH (u1:User)-[:FOLLOWS*1..3]->(u2:User) RETURN u1.name, u2.name")

	if rp.FromCte == "" {
		t.Fatalf("expected FromCte to be set for the VLP hop")
	}
	if len(rp.Ctes) != 1 {
		t.Fatalf("expected 1 recursive CTE appended, got %d", len(rp.Ctes))
	}
	c := rp.Ctes[0]
	if c.Name != rp.FromCte {
		t.Errorf("Cte.Name = %q, want it to match FromCte %q", c.Name, rp.FromCte)
	}
	if !c.IsRecursive {
		t.Errorf("expected the VLP CTE to be marked recursive")
	}
	if c.Content.RawSQL == "" {
		t.Errorf("expected the VLP CTE to carry a formatted recursive body")
	}
	if c.VlpShape == nil {
		t.Errorf("expected the VLP CTE to carry its VlpShape")
	}
}

func TestOptimizeGroupByRewritesBareVariableToID(t *testing.T) {
	b := NewBuilder(testSchema(), nil, nil)
	exprs := b.optimizeGroupBy([]ast.Expression{&ast.Variable{Name: "u"}})
	if len(exprs) != 1 {
		t.Fatalf("expected 1 rewritten expression, got %d", len(exprs))
	}
	pa, ok := exprs[0].(*ast.PropertyAccess)
	if !ok {
		t.Fatalf("expected a PropertyAccess, got %T", exprs[0])
	}
	if pa.Key != "id" {
		t.Errorf("expected bare variable grouping to rewrite to .id, got %q", pa.Key)
	}

	explicit := b.optimizeGroupBy([]ast.Expression{&ast.PropertyAccess{Base: &ast.Variable{Name: "u"}, Key: "name"}})
	if explicit[0].(*ast.PropertyAccess).Key != "name" {
		t.Errorf("expected explicit property-level grouping to pass through unchanged")
	}
}
