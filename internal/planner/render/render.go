// Package render converts a logical plan into a RenderPlan: the target-
// SQL shaped intermediate the SQL emitter (internal/sqlgen) formats
// (C9, spec.md §3.3/§4.4). Grounded on trigo/internal/sparql/executor's
// createIterator type-switch dispatch (executor.go), generalized here
// from "build an iterator" to "build a SQL-shaped render node".
package render

import (
	"fmt"
	"strings"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cte"
	"github.com/cyphersql/core/internal/cypher/ast"
	"github.com/cyphersql/core/internal/planner/logical"
)

type VlpPosition = cte.VlpPosition

// CteColumnMetadata mirrors cte.ColumnMetadata in the render-plan's own
// vocabulary (spec.md §3.3).
type CteColumnMetadata = cte.ColumnMetadata

// CteContent is either a nested RenderPlan or a raw SQL fragment.
type CteContent struct {
	Structured *RenderPlan
	RawSQL     string
}

// Cte is one entry of RenderPlan.Ctes (spec.md §3.3).
type Cte struct {
	Name        string
	Content     CteContent
	IsRecursive bool
	VlpShape    *cte.VlpShape
	Columns     []CteColumnMetadata
	FromAlias   string
}

// JoinType mirrors logical.JoinType in render vocabulary.
type JoinType = logical.JoinType

const (
	JoinInner = logical.JoinInner
	JoinLeft  = logical.JoinLeft
	JoinRight = logical.JoinRight
	JoinCross = logical.JoinCross
)

// Join is one rendered join; an empty JoiningOn marks the FROM marker
// (spec.md §3.3, invariant 6).
type Join struct {
	TableName    string
	TableAlias   string
	JoiningOn    []ast.Expression
	JoinType     JoinType
	PreFilter    ast.Expression
	FromIDColumn string
	ToIDColumn   string
	GraphRel     *logical.GraphRel
}

// ArrayJoin is one UNWIND lowering: `ARRAY JOIN expression AS alias`.
type ArrayJoin struct {
	Expression ast.Expression
	Alias      string
}

// ViewTableRef names a FROM/JOIN table reference, with parameterized
// views rendering as `name(p1 = $p1, ...)` (spec.md §3.3).
type ViewTableRef struct {
	Source         string
	Name           string
	Alias          string
	UseFinal       bool
	ViewParameters []string
}

// FixedPathMetadata records a bound path variable's hop structure so
// length(p)/nodes(p)/relationships(p) can be rewritten later.
type FixedPathMetadata struct {
	PathVariable       string
	HopCount           int
	NodeAliases        []string
	RelationshipAliases []string
}

// SelectItem is one SELECT-list entry.
type SelectItem struct {
	Expr  ast.Expression
	Alias string
}

// CteColumnRegistry maps (cteAlias, cypherProperty) -> emitted column
// name, plus cteAlias -> cte name, consulted when rewriting SELECT/
// WHERE/ORDER BY/GROUP BY/HAVING (spec.md §3.3).
type CteColumnRegistry struct {
	manager    *cte.Manager
	aliasToCte map[string]string
}

func NewCteColumnRegistry(m *cte.Manager) *CteColumnRegistry {
	return &CteColumnRegistry{manager: m, aliasToCte: map[string]string{}}
}

func (r *CteColumnRegistry) BindAlias(alias, cteName string) {
	r.aliasToCte[alias] = cteName
}

func (r *CteColumnRegistry) Resolve(alias, property string) (string, bool) {
	cteName, ok := r.aliasToCte[alias]
	if !ok {
		return "", false
	}
	return r.manager.Resolve(cteName, property)
}

// RenderPlan is the target-SQL shaped intermediate (spec.md §3.3).
type RenderPlan struct {
	Ctes     []Cte
	Select   struct {
		Items    []SelectItem
		Distinct bool
	}
	From        *ViewTableRef
	FromCte     string // set instead of From when the FROM marker is a CTE
	Joins       []Join
	ArrayJoins  []ArrayJoin
	Filters     []ast.Expression
	GroupBy     []ast.Expression
	Having      ast.Expression
	OrderBy     []logical.OrderItem
	Skip        ast.Expression
	Limit       ast.Expression
	Union       []*RenderPlan
	UnionType   ast.UnionType
	FixedPath   *FixedPathMetadata
	Registry    *CteColumnRegistry
}

// Builder converts a logical.Plan into a RenderPlan, consulting the
// same cte.Manager and logical.Scope the logical planner used for this
// query (spec.md §4.4 "Inputs: LogicalPlan + schema").
type Builder struct {
	schema   catalog.GraphSchema
	ctes     *cte.Manager
	scope    *logical.Scope
	registry *CteColumnRegistry
}

func NewBuilder(schema catalog.GraphSchema, ctes *cte.Manager, scope *logical.Scope) *Builder {
	return &Builder{schema: schema, ctes: ctes, scope: scope, registry: NewCteColumnRegistry(ctes)}
}

// RenderError reports a render-time failure: a missing table/column, an
// unsupported construct, or an invalid render plan (spec.md §7).
type RenderError struct {
	Offending string
	Reason    string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error at %q: %s", e.Offending, e.Reason)
}

// Build converts p into a RenderPlan following the construction order in
// spec.md §4.4: CTEs, FROM, JOINs, SELECT, GROUP BY optimization,
// HAVING/ORDER BY/SKIP/LIMIT/UNION, ARRAY JOIN.
func (b *Builder) Build(p logical.Plan) (*RenderPlan, error) {
	rp := &RenderPlan{Registry: b.registry}
	if err := b.renderNode(p, rp); err != nil {
		return nil, err
	}
	b.resolveProperties(rp)
	return rp, nil
}

// resolveProperties rewrites every bare alias.property access reachable
// from rp into its schema- or CTE-mapped column, per spec.md §3.2's
// `resolve(alias, property) -> CteColumn | DbColumn | Unresolved`. Run
// once the plan is fully built so nested WITH-CTE sub-plans (built by
// renderWithCte, not by a recursive Build call) are covered too.
func (b *Builder) resolveProperties(rp *RenderPlan) {
	for i := range rp.Select.Items {
		rp.Select.Items[i].Expr = b.rewriteExpr(rp.Select.Items[i].Expr)
	}
	for i := range rp.GroupBy {
		rp.GroupBy[i] = b.rewriteExpr(rp.GroupBy[i])
	}
	rp.Having = b.rewriteMaybeNil(rp.Having)
	for i := range rp.Filters {
		rp.Filters[i] = b.rewriteExpr(rp.Filters[i])
	}
	for i := range rp.OrderBy {
		rp.OrderBy[i].Expr = b.rewriteExpr(rp.OrderBy[i].Expr)
	}
	for i := range rp.ArrayJoins {
		rp.ArrayJoins[i].Expression = b.rewriteExpr(rp.ArrayJoins[i].Expression)
	}
	rp.Skip = b.rewriteMaybeNil(rp.Skip)
	rp.Limit = b.rewriteMaybeNil(rp.Limit)
	for i := range rp.Joins {
		// JoiningOn is left untouched: it already carries physical column
		// names built from schema FromIDColumn/ToIDColumn/IDColumn, not
		// Cypher property references (see logical.buildJoiningOn).
		rp.Joins[i].PreFilter = b.rewriteMaybeNil(rp.Joins[i].PreFilter)
	}
	for i := range rp.Ctes {
		if rp.Ctes[i].Content.Structured != nil {
			b.resolveProperties(rp.Ctes[i].Content.Structured)
		}
	}
	// Union branches are each built via their own recursive Build() call
	// (see the *logical.Union case in renderNode), which already runs
	// resolveProperties on that branch before it is appended here.
}

func (b *Builder) rewriteMaybeNil(e ast.Expression) ast.Expression {
	if e == nil {
		return nil
	}
	return b.rewriteExpr(e)
}

// rewriteExpr recursively rewrites every PropertyAccess reachable from e
// via resolveProperty, leaving every other expression shape structurally
// unchanged. ExistsSubquery/PatternComprehension/LabelExpression are not
// descended into: this planner doesn't lower them to SQL (SPEC_FULL.md
// open question 3), so there is nothing downstream to resolve against.
func (b *Builder) rewriteExpr(e ast.Expression) ast.Expression {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.PropertyAccess:
		return b.resolveProperty(n)
	case *ast.OperatorApplication:
		ops := make([]ast.Expression, len(n.Operands))
		for i, o := range n.Operands {
			ops[i] = b.rewriteExpr(o)
		}
		return &ast.OperatorApplication{Operator: n.Operator, Operands: ops}
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = b.rewriteExpr(a)
		}
		return &ast.FunctionCall{Name: n.Name, Args: args, Distinct: n.Distinct}
	case *ast.ListLiteral:
		items := make([]ast.Expression, len(n.Items))
		for i, it := range n.Items {
			items[i] = b.rewriteExpr(it)
		}
		return &ast.ListLiteral{Items: items}
	case *ast.MapLiteral:
		entries := make([]ast.MapEntry, len(n.Entries))
		for i, ent := range n.Entries {
			entries[i] = ast.MapEntry{Key: ent.Key, Value: b.rewriteExpr(ent.Value)}
		}
		return &ast.MapLiteral{Entries: entries}
	case *ast.CaseExpression:
		branches := make([]ast.WhenThen, len(n.Branches))
		for i, wt := range n.Branches {
			branches[i] = ast.WhenThen{When: b.rewriteExpr(wt.When), Then: b.rewriteExpr(wt.Then)}
		}
		return &ast.CaseExpression{Scrutinee: b.rewriteMaybeNil(n.Scrutinee), Branches: branches, Else: b.rewriteMaybeNil(n.Else)}
	case *ast.Reduce:
		return &ast.Reduce{Accumulator: n.Accumulator, Init: b.rewriteExpr(n.Init), Variable: n.Variable, List: b.rewriteExpr(n.List), Body: b.rewriteExpr(n.Body)}
	case *ast.SliceExpression:
		return &ast.SliceExpression{List: b.rewriteExpr(n.List), From: b.rewriteMaybeNil(n.From), To: b.rewriteMaybeNil(n.To)}
	default:
		return e
	}
}

// resolveProperty is the single point where alias.property becomes the
// db-mapped or CTE-mapped column it actually reads from (spec.md §3.2
// property rewriting rule 2, concrete scenario #1: u.name -> u.full_name
// AS name). Only PropertyAccess nodes whose base is a bare alias
// variable are rewritten; anything else passes through unchanged.
func (b *Builder) resolveProperty(pa *ast.PropertyAccess) ast.Expression {
	v, ok := pa.Base.(*ast.Variable)
	if !ok || b.scope == nil {
		return pa
	}
	switch res := b.scope.ResolveProperty(v.Name, pa.Key); res.Kind {
	case logical.ResolvedCteColumn:
		if col, ok := b.registry.Resolve(v.Name, pa.Key); ok {
			return &ast.PropertyAccess{Base: &ast.Variable{Name: cte.FromAlias}, Key: col}
		}
	case logical.ResolvedDbColumn:
		if res.Label == "" {
			return pa
		}
		ls, ok := b.schema.Label(res.Label)
		if !ok {
			return pa
		}
		if col, ok := ls.Property(pa.Key); ok {
			return &ast.PropertyAccess{Base: pa.Base, Key: col}
		}
	}
	return pa
}

// idColumnFor resolves alias's id column via its bound label's schema,
// falling back to the literal "id" when the alias isn't a labeled node
// (anonymous nodes, CTE-sourced aliases, or when scope is unavailable).
func (b *Builder) idColumnFor(alias string) string {
	if b.scope == nil {
		return "id"
	}
	res := b.scope.ResolveProperty(alias, "")
	if res.Kind == logical.ResolvedDbColumn && res.Label != "" {
		if ls, ok := b.schema.Label(res.Label); ok {
			return ls.IDColumn
		}
	}
	return "id"
}

// renderNode is the big type-switch dispatch over logical plan node
// types, grounded on trigo's createIterator dispatch but building a
// RenderPlan instead of executing (spec.md §4.4).
func (b *Builder) renderNode(p logical.Plan, rp *RenderPlan) error {
	switch n := p.(type) {
	case *logical.Empty:
		return nil

	case *logical.Limit:
		rp.Limit = n.Count
		return b.renderNode(n.Input, rp)

	case *logical.Skip:
		rp.Skip = n.Count
		return b.renderNode(n.Input, rp)

	case *logical.OrderBy:
		for _, it := range n.Items {
			rp.OrderBy = append(rp.OrderBy, logical.OrderItem{Expr: it.Expr, Direction: it.Direction})
		}
		return b.renderNode(n.Input, rp)

	case *logical.Projection:
		rp.Select.Distinct = n.Distinct
		if len(n.Items) == 0 {
			return b.expandStar(n.Input, rp)
		}
		for _, it := range n.Items {
			rp.Select.Items = append(rp.Select.Items, SelectItem{Expr: it.Expr, Alias: it.Alias})
		}
		return b.renderNode(n.Input, rp)

	case *logical.GroupBy:
		rp.GroupBy = b.optimizeGroupBy(n.Expressions)
		rp.Having = n.Having
		for _, agg := range n.Aggregates {
			rp.Select.Items = append(rp.Select.Items, SelectItem{Expr: agg.Expr, Alias: agg.Alias})
		}
		for _, e := range n.Expressions {
			if v, ok := e.(*ast.Variable); ok {
				rp.Select.Items = append(rp.Select.Items, SelectItem{Expr: e, Alias: v.Name})
			}
		}
		return b.renderNode(n.Input, rp)

	case *logical.Filter:
		rp.Filters = append(rp.Filters, n.Predicate)
		return b.renderNode(n.Input, rp)

	case *logical.Unwind:
		rp.ArrayJoins = append(rp.ArrayJoins, ArrayJoin{Expression: n.Expr, Alias: n.Alias})
		return b.renderNode(n.Input, rp)

	case *logical.WithClause:
		cteName, err := b.renderWithCte(n, rp)
		if err != nil {
			return err
		}
		rp.FromCte = cteName
		return nil

	case *logical.GraphJoins:
		return b.renderGraphJoins(n, rp)

	case *logical.WriteNode:
		// Write clauses have no SQL-render representation; they are
		// surfaced to the caller structurally by the logical plan only.
		return b.renderNode(n.Input, rp)

	case *logical.CartesianProduct:
		if err := b.renderNode(n.Left, rp); err != nil {
			return err
		}
		return b.renderNode(n.Right, rp)

	case *logical.Union:
		for _, in := range n.Inputs {
			sub, err := b.Build(in)
			if err != nil {
				return err
			}
			rp.Union = append(rp.Union, sub)
		}
		return nil

	case *logical.GraphNode, *logical.GraphRel, *logical.ViewScan:
		// The pattern tree under a GraphJoins frame is already in that
		// frame's join list (renderGraphJoins); nothing is left to add.
		return nil

	default:
		return &RenderError{Offending: fmt.Sprintf("%T", p), Reason: "no render rule for this logical node"}
	}
}

func (b *Builder) expandStar(p logical.Plan, rp *RenderPlan) error {
	// Wildcard expansion over the plan's visible aliases (spec.md §4.4
	// step 4): each GraphNode alias contributes one select item holding the
	// bare alias, which the emitter writes as the alias name; it is not
	// expanded into the label's columns.
	var visit func(logical.Plan)
	visit = func(p logical.Plan) {
		switch n := p.(type) {
		case *logical.GraphNode:
			rp.Select.Items = append(rp.Select.Items, SelectItem{Expr: &ast.Variable{Name: n.Alias}, Alias: n.Alias})
		case nil:
		default:
			for _, c := range p.Children() {
				visit(c)
			}
		}
	}
	visit(p)
	return b.renderNode(p, rp)
}

// optimizeGroupBy applies the GROUP BY id-column optimization (spec.md
// §4.4 step 5): a node alias used bare in GROUP BY is rewritten to group
// on its id column only, since all its other columns are functionally
// dependent on the id in graph semantics. Explicit property-level
// grouping passes through unchanged.
func (b *Builder) optimizeGroupBy(exprs []ast.Expression) []ast.Expression {
	out := make([]ast.Expression, 0, len(exprs))
	for _, e := range exprs {
		if v, ok := e.(*ast.Variable); ok {
			out = append(out, &ast.PropertyAccess{Base: v, Key: b.idColumnFor(v.Name)})
			continue
		}
		out = append(out, e)
	}
	return out
}

// renderWithCte renders a WITH scope barrier as a named CTE, registering
// its column metadata in the CteColumnRegistry (spec.md §4.4 step 1).
func (b *Builder) renderWithCte(n *logical.WithClause, rp *RenderPlan) (string, error) {
	inner := &RenderPlan{Registry: b.registry}
	for _, it := range n.Items {
		inner.Select.Items = append(inner.Select.Items, SelectItem{Expr: it.Expr, Alias: it.Alias})
	}
	if err := b.renderNode(n.Input, inner); err != nil {
		return "", err
	}

	var cteName string
	for name := range n.CteReferences {
		cteName = name
	}
	if cteName == "" {
		cteName = "with_cte"
	}

	cols := b.ctes.Columns(cteName)
	for _, it := range n.Items {
		b.registry.BindAlias(it.Alias, cteName)
	}

	rp.Ctes = append(rp.Ctes, Cte{
		Name:      cteName,
		Content:   CteContent{Structured: inner},
		Columns:   cols,
		FromAlias: cte.FromAlias,
	})
	return cteName, nil
}

// renderGraphJoins renders a GraphJoins frame per spec.md §4.4 steps
// 2-3: the FROM marker becomes RenderPlan.From, every other join becomes
// a RenderPlan.Joins entry, with duplicate aliases renamed sequentially.
func (b *Builder) renderGraphJoins(n *logical.GraphJoins, rp *RenderPlan) error {
	seen := map[string]int{}
	renamed := make(map[string]string, len(n.Joins))

	for i, j := range n.Joins {
		alias := j.TableAlias
		seen[alias]++
		if seen[alias] > 1 {
			alias = fmt.Sprintf("%s_%d", alias, seen[alias]-1)
			renamed[fmt.Sprintf("%s#%d", j.TableAlias, i)] = alias
		}

		if len(j.JoiningOn) == 0 && rp.From == nil && rp.FromCte == "" {
			if j.GraphRel != nil && j.GraphRel.VariableLength != nil {
				// The logical planner already named this hop's recursive
				// CTE and stashed the name on GraphRel.Alias; the render
				// plan's FROM becomes that CTE, joined via cte.FromAlias.
				rp.FromCte = j.GraphRel.Alias
				if shape := j.GraphRel.VlpShape; shape != nil {
					rp.Ctes = append(rp.Ctes, Cte{
						Name:        shape.Name,
						Content:     CteContent{RawSQL: buildVlpCteBody(shape)},
						IsRecursive: true,
						VlpShape:    shape,
						Columns:     shape.OutputColumns,
						FromAlias:   cte.FromAlias,
					})
				}
				continue
			}
			rp.From = &ViewTableRef{Source: j.TableName, Name: j.TableName, Alias: alias}
			continue
		}

		rp.Joins = append(rp.Joins, Join{
			TableName:    j.TableName,
			TableAlias:   alias,
			JoiningOn:    j.JoiningOn,
			JoinType:     j.JoinType,
			PreFilter:    j.PreFilter,
			FromIDColumn: j.FromIDColumn,
			ToIDColumn:   j.ToIDColumn,
			GraphRel:     j.GraphRel,
		})
	}

	if rp.From == nil && rp.FromCte == "" && len(n.Joins) > 0 {
		rp.From = &ViewTableRef{Source: n.Joins[0].TableName, Name: n.Joins[0].TableName, Alias: n.Joins[0].TableAlias}
	}

	return b.renderNode(n.Input, rp)
}

// buildVlpCteBody formats the recursive CTE body for a variable-length
// path hop (spec.md §4.3): a base case scanning the relationship
// table(s) directly, UNION ALL'd with a recursive case that grows the
// path by one hop, bounded by MaxHops and (outside shortestPath) a
// revisit guard on path_nodes. shortestPath keeps only the first reach
// of each (start_id, end_id) pair via ClickHouse's LIMIT BY.
func buildVlpCteBody(shape *cte.VlpShape) string {
	var b strings.Builder
	for i, table := range shape.RelationTables {
		if i > 0 {
			b.WriteString(" UNION ALL ")
		}
		fmt.Fprintf(&b,
			"SELECT r.%s AS start_id, r.%s AS end_id, 1 AS hop_count, [r.%s, r.%s] AS path_nodes, [r.%s] AS path_relationships FROM %s AS r",
			shape.AnchorIDColumn, shape.GrowIDColumn, shape.AnchorIDColumn, shape.GrowIDColumn, shape.AnchorIDColumn, table)
	}
	for _, table := range shape.RelationTables {
		b.WriteString(" UNION ALL ")
		fmt.Fprintf(&b,
			"SELECT prev.start_id, r.%s AS end_id, prev.hop_count + 1, arrayConcat(prev.path_nodes, [r.%s]), arrayConcat(prev.path_relationships, [r.%s]) FROM %s AS prev JOIN %s AS r ON r.%s = prev.end_id WHERE prev.hop_count < %d",
			shape.GrowIDColumn, shape.GrowIDColumn, shape.AnchorIDColumn, shape.Name, table, shape.AnchorIDColumn, shape.MaxHops)
		if shape.PreventRevisit {
			fmt.Fprintf(&b, " AND NOT has(prev.path_nodes, r.%s)", shape.GrowIDColumn)
		}
	}
	if shape.IsShortestPath {
		b.WriteString(" ORDER BY hop_count ASC LIMIT 1 BY start_id, end_id")
	}
	return b.String()
}
