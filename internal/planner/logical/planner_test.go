package logical

import (
	"testing"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cypher/ast"
	"github.com/cyphersql/core/internal/cypher/parser"
)

// testSchema builds the User/FOLLOWS/Person/KNOWS schema used by
// spec.md §8's concrete end-to-end scenarios.
func testSchema() *catalog.StaticSchema {
	s := catalog.NewStaticSchema()
	s.AddLabel(&catalog.LabelSchema{
		Label: "User", SourceTable: "users", IDColumn: "user_id",
		PropertyMap: map[string]string{"name": "full_name", "age": "age"},
	})
	s.AddLabel(&catalog.LabelSchema{
		Label: "Person", SourceTable: "person", IDColumn: "id",
		PropertyMap: map[string]string{"name": "full_name", "age": "age"},
	})
	s.AddRelationshipType(&catalog.RelationshipSchema{
		Type: "FOLLOWS", SourceTable: "user_follows_user",
		FromIDColumn: "follower_id", ToIDColumn: "followee_id",
	})
	s.AddRelationshipType(&catalog.RelationshipSchema{
		Type: "KNOWS", SourceTable: "person_knows_person",
		FromIDColumn: "person1_id", ToIDColumn: "person2_id",
	})
	return s
}

func buildPlan(t *testing.T, query string) Plan {
	t.Helper()
	stmt, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("parse(%q): %v", query, err)
	}
	b := NewBuilder(testSchema(), DefaultOptions())
	plan, err := b.Build(stmt.Queries[0])
	if err != nil {
		t.Fatalf("build(%q): %v", query, err)
	}
	return plan
}

// Scenario 1 (spec.md §8): simple match with a filter, projection, and
// limit lowers to Limit <- Projection <- GraphJoins, with the WHERE
// predicate carried on a Filter beneath the materialized joins.
func TestBuildSimpleMatch(t *testing.T) {
	plan := buildPlan(t, "MATCH (u:User) WHERE u.age > 25 RETURN u.name LIMIT 10")

	lim, ok := plan.(*Limit)
	if !ok {
		t.Fatalf("root is not Limit: %T", plan)
	}
	if lim.Count == nil {
		t.Fatalf("Limit.Count not set")
	}
	proj, ok := lim.Input.(*Projection)
	if !ok {
		t.Fatalf("Limit.Input is not Projection: %T", lim.Input)
	}
	if len(proj.Items) != 1 {
		t.Fatalf("expected 1 projection item, got %d", len(proj.Items))
	}
	gj, ok := proj.Input.(*GraphJoins)
	if !ok {
		t.Fatalf("Projection.Input is not GraphJoins: %T", proj.Input)
	}
	if _, ok := gj.Input.(*Filter); !ok {
		t.Fatalf("GraphJoins.Input is not Filter: %T", gj.Input)
	}
	if len(gj.Joins) != 1 {
		t.Fatalf("expected 1 join (the FROM marker), got %d", len(gj.Joins))
	}
	if gj.Joins[0].TableName != "users" {
		t.Errorf("FROM table = %q, want %q", gj.Joins[0].TableName, "users")
	}
}

// Scenario 2 (spec.md §8): OPTIONAL MATCH whose WHERE references the
// optional side attaches that predicate to the join's pre_filter, not
// the outer filter list (invariant 8).
func TestBuildOptionalMatchAttachesPreFilter(t *testing.T) {
	plan := buildPlan(t, "MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b:Person) WHERE b.age > 30 RETURN a, b")

	proj, ok := plan.(*Projection)
	if !ok {
		t.Fatalf("root is not Projection: %T", plan)
	}
	gj, ok := proj.Input.(*GraphJoins)
	if !ok {
		t.Fatalf("projection input is not GraphJoins: %T", proj.Input)
	}

	foundOptionalRel := false
	for _, j := range gj.Joins {
		if j.GraphRel != nil && j.GraphRel.IsOptional {
			foundOptionalRel = true
			if j.PreFilter == nil {
				t.Errorf("optional join missing pre_filter for b.age > 30")
			}
		}
	}
	if !foundOptionalRel {
		t.Fatalf("no optional relationship join found in %+v", gj.Joins)
	}
}

// Scenario 3 (spec.md §8): a variable-length path lowers to a single
// GraphRel carrying VariableLength bounds, consumed later by the CTE
// manager to name the recursive CTE.
func TestBuildVariableLengthPath(t *testing.T) {
	plan := buildPlan(t, "MATCH (u1:User)-[:FOLLOWS*1..3]->(u2:User) RETURN u1.name, u2.name")

	proj, ok := plan.(*Projection)
	if !ok {
		t.Fatalf("root is not Projection: %T", plan)
	}
	gj, ok := proj.Input.(*GraphJoins)
	if !ok {
		t.Fatalf("projection input is not GraphJoins: %T", proj.Input)
	}

	var vlpJoin *Join
	for i := range gj.Joins {
		if gj.Joins[i].GraphRel != nil && gj.Joins[i].GraphRel.VariableLength != nil {
			vlpJoin = &gj.Joins[i]
		}
	}
	if vlpJoin == nil {
		t.Fatalf("no variable-length join found")
	}
	vl := vlpJoin.GraphRel.VariableLength
	if vl.MinHops == nil || *vl.MinHops != 1 {
		t.Errorf("min hops = %v, want 1", vl.MinHops)
	}
	if vl.MaxHops == nil || *vl.MaxHops != 3 {
		t.Errorf("max hops = %v, want 3", vl.MaxHops)
	}
}

// Scenario 4 (spec.md §8): WITH + aggregate produces a GroupBy stage
// (the inner CTE side carrying HAVING) feeding an outer Projection.
func TestBuildWithAggregate(t *testing.T) {
	plan := buildPlan(t, "MATCH (u:User)-[:FOLLOWS]->(f:User) WITH u, count(f) AS fcount WHERE fcount > 5 RETURN u.name, fcount")

	proj, ok := plan.(*Projection)
	if !ok {
		t.Fatalf("root is not Projection: %T", plan)
	}
	withClause, ok := proj.Input.(*WithClause)
	if !ok {
		t.Fatalf("projection input is not WithClause: %T", proj.Input)
	}
	gb, ok := withClause.Input.(*GroupBy)
	if !ok {
		t.Fatalf("with-clause input is not GroupBy: %T", withClause.Input)
	}
	if gb.Having == nil {
		t.Errorf("expected HAVING on the GroupBy stage for fcount > 5")
	}
	if len(gb.Aggregates) != 1 {
		t.Errorf("expected 1 aggregate, got %d", len(gb.Aggregates))
	}
}

// Scenario 6 (spec.md §8): an inverted hop range fails parsing before
// planning is ever attempted.
func TestInvertedRangeFailsAtParse(t *testing.T) {
	_, err := parser.Parse("MATCH (a)-[:R*5..2]->(b) RETURN b")
	if err == nil {
		t.Fatalf("expected inverted-range parse error, got none")
	}
}

// Concrete scenario #2 (spec.md §8): the relationship join's ON clause
// equates the relationship table's from-id column against the left
// node's id column, e.g. `k.person1_id = a.id`.
func TestBuildJoinCarriesOnClause(t *testing.T) {
	plan := buildPlan(t, "MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b:Person) WHERE b.age > 30 RETURN a, b")

	proj, ok := plan.(*Projection)
	if !ok {
		t.Fatalf("root is not Projection: %T", plan)
	}
	gj, ok := proj.Input.(*GraphJoins)
	if !ok {
		t.Fatalf("projection input is not GraphJoins: %T", proj.Input)
	}
	if len(gj.Joins) != 3 {
		t.Fatalf("expected 3 joins (a, r, b), got %d: %+v", len(gj.Joins), gj.Joins)
	}
	for i, j := range gj.Joins {
		if i == 0 {
			if len(j.JoiningOn) != 0 {
				t.Errorf("anchor join %d carries JoiningOn, want none", i)
			}
			continue
		}
		if len(j.JoiningOn) == 0 {
			t.Errorf("join %d (%s) has no JoiningOn, want an equality predicate", i, j.TableAlias)
		}
	}

	rel := gj.Joins[1]
	if rel.GraphRel == nil {
		t.Fatalf("joins[1] is not the relationship join: %+v", rel)
	}
	eq, ok := rel.JoiningOn[0].(*ast.OperatorApplication)
	if !ok || eq.Operator != ast.OpEqual {
		t.Fatalf("relationship JoiningOn is not an equality predicate: %+v", rel.JoiningOn)
	}
	left := eq.Operands[0].(*ast.PropertyAccess)
	right := eq.Operands[1].(*ast.PropertyAccess)
	if left.Key != "person1_id" || right.Key != "id" || right.Base.(*ast.Variable).Name != "a" {
		t.Errorf("ON clause = %s.%s = %s.%s, want r.person1_id = a.id",
			left.Base.(*ast.Variable).Name, left.Key, right.Base.(*ast.Variable).Name, right.Key)
	}
}

// chooseAnchor rule (b): when a WITH alias is carried and present among
// the joins, it is preferred as the FROM marker over rule (c)'s default
// of the first join (spec.md §4.2).
func TestChooseAnchorPrefersWithAlias(t *testing.T) {
	joins := []Join{
		{TableAlias: "a", TableName: "person"},
		{TableAlias: "r", TableName: "person_knows_person", GraphRel: &GraphRel{}},
		{TableAlias: "b", TableName: "person"},
	}
	if got := chooseAnchor(joins, ""); got != 0 {
		t.Errorf("chooseAnchor with no hint = %d, want 0", got)
	}
	if got := chooseAnchor(joins, "b"); got != 2 {
		t.Errorf("chooseAnchor with withAlias=%q = %d, want 2", "b", got)
	}
	if got := chooseAnchor(joins, "missing"); got != 0 {
		t.Errorf("chooseAnchor with unresolvable hint = %d, want fallback to 0", got)
	}
}

func TestVariableLengthFixedLengthEquivalence(t *testing.T) {
	// spec.md §8 invariant 3: min = max = n is equivalent to a fixed n-hop
	// path; both should at least parse and plan without error.
	plan := buildPlan(t, "MATCH (u1:User)-[:FOLLOWS*2..2]->(u2:User) RETURN u1.name")
	if plan == nil {
		t.Fatalf("expected a plan")
	}
}
