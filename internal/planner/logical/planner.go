package logical

import (
	"fmt"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cte"
	"github.com/cyphersql/core/internal/cypher/ast"
)

// Options configures planner behavior that the source hard-codes as a
// knob; spec.md §9 open question 1 says this should be configuration,
// not a constant.
type Options struct {
	// MaxUnboundedHops is the ceiling applied when a VariableLengthSpec
	// leaves MaxHops unset (the bare `*` or `*N..` forms).
	MaxUnboundedHops uint32
}

// DefaultOptions mirrors the source's de-facto ceiling.
func DefaultOptions() Options {
	return Options{MaxUnboundedHops: 6}
}

// PlanError reports a planning failure, naming the offending alias or
// property (spec.md §7).
type PlanError struct {
	Offending string
	Reason    string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan error at %q: %s", e.Offending, e.Reason)
}

// Builder lowers one Query AST into a LogicalPlan. A Builder is created
// fresh per query; it owns the scope stack and CTE manager for that
// query only (spec.md §5: no cross-query shared mutable state).
type Builder struct {
	schema       catalog.GraphSchema
	scope        *Scope
	ctes         *cte.Manager
	opts         Options
	nodeBindings map[int]nodeBinding // arena index -> resolved binding
	withAlias    string              // most recent WITH's exported alias, for chooseAnchor rule (b)
}

type nodeBinding struct {
	alias string
	label string
}

// NewBuilder creates a Builder for one query.
func NewBuilder(schema catalog.GraphSchema, opts Options) *Builder {
	return &Builder{
		schema:       schema,
		scope:        NewScope(),
		ctes:         cte.NewManager(),
		opts:         opts,
		nodeBindings: map[int]nodeBinding{},
	}
}

// CteManager exposes the query's CTE manager so the render planner (C9)
// can consult the same naming/column registry the logical planner used.
func (b *Builder) CteManager() *cte.Manager { return b.ctes }

// Scope exposes the query's variable scope for render-time property
// resolution.
func (b *Builder) Scope() *Scope { return b.scope }

// Build lowers a single Query (one UNION branch) into a LogicalPlan
// rooted at its final projection/limit (spec.md §4.2).
func (b *Builder) Build(q *ast.Query) (Plan, error) {
	var plan Plan = &Empty{}
	haveReads := false

	for _, m := range q.Match {
		p, err := b.planMatch(m, false)
		if err != nil {
			return nil, err
		}
		plan = combine(plan, p, haveReads)
		haveReads = true
	}
	for _, m := range q.OptionalMatch {
		p, err := b.planMatch(m, true)
		if err != nil {
			return nil, err
		}
		plan = combine(plan, p, haveReads)
		haveReads = true
	}

	if q.Where != nil {
		plan = &Filter{Predicate: q.Where.Predicate, Input: plan}
	}

	plan = b.materializeJoins(plan)

	for _, u := range q.Unwind {
		plan = &Unwind{Expr: u.Expression, Alias: u.Alias, Input: plan}
		b.scope.Bind(u.Alias, AliasBinding{Source: SourceTableColumn, TableAlias: u.Alias})
	}

	if q.With != nil {
		p, err := b.planWith(q.With, plan)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	if q.Create != nil {
		plan = b.planCreate(q.Create, plan)
	}
	if q.Set != nil {
		plan = b.planSet(q.Set, plan)
	}
	if q.Remove != nil {
		plan = b.planRemove(q.Remove, plan)
	}
	if q.Delete != nil {
		plan = b.planDelete(q.Delete, plan)
	}

	if q.Return != nil {
		p, err := b.planReturn(q.Return, plan)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	if q.OrderBy != nil {
		var items []OrderItem
		for _, it := range q.OrderBy.Items {
			items = append(items, OrderItem{Expr: it.Expression, Direction: it.Direction})
		}
		plan = &OrderBy{Items: items, Input: plan}
	}
	if q.Skip != nil {
		plan = &Skip{Count: q.Skip.Expression, Input: plan}
	}
	if q.Limit != nil {
		plan = &Limit{Count: q.Limit.Expression, Input: plan}
	}

	return plan, nil
}

// combine joins a newly planned read clause onto the accumulated plan.
// The first read clause becomes the base; subsequent ones cross-join
// (heuristic ordering only, per spec.md Non-goals: no cost-based join
// ordering).
func combine(acc, next Plan, haveReads bool) Plan {
	if !haveReads {
		return next
	}
	if _, empty := acc.(*Empty); empty {
		return next
	}
	return &CartesianProduct{Left: acc, Right: next}
}

// planMatch lowers one MATCH/OPTIONAL MATCH clause's path pattern into a
// GraphNode/GraphRel tree, applying the WHERE attached to it (OPTIONAL
// MATCH's WHERE becomes the pre-filter of the pattern's last relationship
// join per spec.md §4.2; on a pattern with no relationship it stays a
// Filter).
func (b *Builder) planMatch(m *ast.MatchClause, optional bool) (Plan, error) {
	plan, err := b.planPathPattern(m.Pattern, optional)
	if err != nil {
		return nil, err
	}
	if m.Where != nil {
		if gr, ok := plan.(*GraphRel); ok && optional {
			if gr.WherePredicate != nil {
				gr.WherePredicate = &ast.OperatorApplication{Operator: ast.OpAnd, Operands: []ast.Expression{gr.WherePredicate, m.Where.Predicate}}
			} else {
				gr.WherePredicate = m.Where.Predicate
			}
			return plan, nil
		}
		plan = &Filter{Predicate: m.Where.Predicate, Input: plan}
	}
	return plan, nil
}

func (b *Builder) planPathPattern(pp *ast.PathPattern, optional bool) (Plan, error) {
	switch pp.Kind {
	case ast.PathKindShortest, ast.PathKindAllShortest:
		return b.planConnected(pp.Wrapped, optional, pp.Kind)
	default:
		return b.planConnected(pp, optional, ast.PathKindNode)
	}
}

func (b *Builder) planConnected(pp *ast.PathPattern, optional bool, shortestMode ast.PathPatternKind) (Plan, error) {
	startPlan, err := b.planNode(pp.Start)
	if err != nil {
		return nil, err
	}
	if len(pp.Chain) == 0 {
		return startPlan, nil
	}

	fixedHops := 0
	for _, hop := range pp.Chain {
		if hop.Relationship.VariableLength == nil {
			fixedHops++
		}
	}

	left := startPlan
	var leftNode = pp.Start
	for i, hop := range pp.Chain {
		rightPlan, err := b.planNode(hop.Node)
		if err != nil {
			return nil, err
		}
		rel := hop.Relationship
		relSchema, relTables, err := b.bindRelationshipTypes(rel.Types)
		if err != nil {
			return nil, err
		}

		center := b.relScan(relSchema, relTables)
		graphRel := &GraphRel{
			Alias:            rel.Name,
			Left:             left,
			Center:           center,
			Right:            rightPlan,
			Direction:        rel.Direction,
			Labels:           rel.Types,
			VariableLength:   rel.VariableLength,
			IsOptional:       optional,
			ShortestPathMode: shortestMode,
		}
		if relSchema != nil {
			graphRel.LeftConnection = relSchema.FromIDColumn
			graphRel.RightConnection = relSchema.ToIDColumn
		}

		if rel.VariableLength != nil {
			vlpKey := cte.VlpKey{
				StartAlias: aliasOf(leftNode, i, "l"),
				EndAlias:   aliasOf(hop.Node, i, "r"),
				Types:      rel.Types,
				MinHops:    derefU32(rel.VariableLength.MinHops, 1),
				MaxHops:    derefU32(rel.VariableLength.MaxHops, 0),
				Direction:  int(rel.Direction),
			}
			fromID, toID := "", ""
			if relSchema != nil {
				fromID, toID = relSchema.FromIDColumn, relSchema.ToIDColumn
			}
			isShortest := shortestMode == ast.PathKindShortest || shortestMode == ast.PathKindAllShortest
			shape := cte.BuildVlpShape(b.ctes, vlpKey, relTables, fromID, toID, rel.Direction == ast.Incoming, isShortest, b.opts.MaxUnboundedHops)
			graphRel.Alias = shape.Name
			graphRel.VlpShape = &shape
		} else if fixedHops >= 2 && shortestMode == ast.PathKindNode {
			// Cycle prevention for fixed multi-hop patterns (spec.md §4.2):
			// disallow a hop whose two endpoint nodes are the same node.
			graphRel.WherePredicate = cyclePreventionPredicate(leftNode, hop.Node)
		}

		left = graphRel
		leftNode = hop.Node
	}
	return left, nil
}

func aliasOf(n *ast.NodePattern, hop int, side string) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("_n%d_%s", hop, side)
}

func derefU32(p *uint32, def uint32) uint32 {
	if p == nil {
		return def
	}
	return *p
}

// cyclePreventionPredicate builds `left <> right` over the two hop
// endpoints' identities, preventing a fixed-length chain from revisiting
// a node it already passed through (spec.md §4.2 cycle prevention).
func cyclePreventionPredicate(left, right *ast.NodePattern) ast.Expression {
	leftExpr := ast.Expression(&ast.Variable{Name: aliasOf(left, left.Index, "l")})
	rightExpr := ast.Expression(&ast.Variable{Name: aliasOf(right, right.Index, "r")})
	return &ast.OperatorApplication{Operator: ast.OpNotEqual, Operands: []ast.Expression{leftExpr, rightExpr}}
}

func (b *Builder) planNode(n *ast.NodePattern) (Plan, error) {
	if len(n.Labels) == 0 {
		// Anonymous/unlabeled node: defer binding to the relationship's
		// schema (denormalized edges, or a later join). Represented as a
		// bare GraphNode with no ViewScan input.
		node := &GraphNode{Alias: n.Name, Input: &Empty{}}
		b.nodeBindings[n.Index] = nodeBinding{alias: n.Name}
		if n.Name != "" {
			b.scope.Bind(n.Name, AliasBinding{Source: SourceTableColumn, TableAlias: n.Name})
		}
		return node, nil
	}

	if len(n.Labels) == 1 {
		label, ls, err := b.bindLabel(n.Labels[0])
		if err != nil {
			return nil, err
		}
		scan := b.nodeScan(ls)
		alias := n.Name
		if alias == "" {
			alias = fmt.Sprintf("_n%d", n.Index)
		}
		node := &GraphNode{Alias: alias, Label: label, Input: scan}
		b.nodeBindings[n.Index] = nodeBinding{alias: alias, label: label}
		b.scope.Bind(alias, AliasBinding{Source: SourceTableColumn, TableAlias: alias, Label: label})
		return node, nil
	}

	// Multi-label node: Union of ViewScans, one per label (spec.md §4.2).
	var inputs []Plan
	for _, lbl := range n.Labels {
		_, ls, err := b.bindLabel(lbl)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, b.nodeScan(ls))
	}
	alias := n.Name
	if alias == "" {
		alias = fmt.Sprintf("_n%d", n.Index)
	}
	union := &Union{Inputs: inputs, UnionType: ast.UnionDistinct}
	node := &GraphNode{Alias: alias, Input: union}
	b.nodeBindings[n.Index] = nodeBinding{alias: alias}
	b.scope.Bind(alias, AliasBinding{Source: SourceTableColumn, TableAlias: alias})
	return node, nil
}

func (b *Builder) bindLabel(label string) (string, *catalog.LabelSchema, error) {
	ls, ok := b.schema.Label(label)
	if !ok {
		return "", nil, &catalog.SchemaError{Identifier: label, Reason: "unknown label"}
	}
	return label, ls, nil
}

func (b *Builder) nodeScan(ls *catalog.LabelSchema) *ViewScan {
	return &ViewScan{
		SourceTable:        ls.SourceTable,
		PropertyMapping:    ls.PropertyMap,
		IDColumn:           ls.IDColumn,
		ViewFilter:         ls.ViewFilter,
		UseFinal:           ls.UseFinal,
		ViewParameterNames: ls.ViewParameters,
	}
}

// bindRelationshipTypes resolves a (possibly multi-type) relationship
// pattern; multi-type patterns (`:A|B`) union their backing tables
// (spec.md §4.3).
func (b *Builder) bindRelationshipTypes(types []string) (*catalog.RelationshipSchema, []string, error) {
	if len(types) == 0 {
		return nil, nil, nil
	}
	var first *catalog.RelationshipSchema
	var tables []string
	for _, t := range types {
		rs, ok := b.schema.RelationshipType(t)
		if !ok {
			return nil, nil, &catalog.SchemaError{Identifier: t, Reason: "unknown relationship type"}
		}
		if first == nil {
			first = rs
		}
		tables = append(tables, rs.SourceTable)
	}
	return first, tables, nil
}

func (b *Builder) relScan(rs *catalog.RelationshipSchema, tables []string) *ViewScan {
	if rs == nil {
		return &ViewScan{}
	}
	return &ViewScan{
		SourceTable:        rs.SourceTable,
		PropertyMapping:    rs.PropertyMap,
		FromID:             rs.FromIDColumn,
		ToID:               rs.ToIDColumn,
		FromNodeProperties: rs.FromNodeProps,
		ToNodeProperties:   rs.ToNodeProps,
		ViewFilter:         rs.ViewFilter,
		UseFinal:           rs.UseFinal,
		IsDenormalized:     rs.IsDenormalized,
		ViewParameterNames: rs.ViewParameters,
	}
}

// materializeJoins groups the accumulated GraphNode/GraphRel tree under
// a GraphJoins frame, choosing exactly one FROM marker (spec.md §4.2,
// invariant 6).
func (b *Builder) materializeJoins(plan Plan) Plan {
	var joins []Join
	collectJoins(plan, &joins)
	if len(joins) == 0 {
		return plan
	}

	anchorIdx := chooseAnchor(joins, b.withAlias)
	buildJoiningOn(joins, anchorIdx)

	return &GraphJoins{
		Input:                plan,
		Joins:                joins,
		AnchorTable:          joins[anchorIdx].TableName,
		CteReferences:        map[string]string{},
		PreferredAnchorAlias: b.withAlias,
	}
}

// chooseAnchor picks the FROM marker per spec.md §4.2: a variable-length
// hop's join when there is one (its recursive CTE becomes the FROM), else
// the most recent WITH's exported alias when one is carried and present
// among the joins (rule b), else the first join (rule c).
func chooseAnchor(joins []Join, withAlias string) int {
	for i, j := range joins {
		if j.GraphRel != nil && j.GraphRel.VlpShape != nil {
			return i
		}
	}
	if withAlias != "" {
		for i, j := range joins {
			if j.TableAlias == withAlias {
				return i
			}
		}
	}
	return 0
}

// buildJoiningOn derives each non-anchor join's ON-clause equality
// predicate from the adjacent alias's id column (spec.md §4.2 invariant
// 6). Joins alternate node/relationship/node/... in chain order; a
// relationship join connects to its left node's id column via
// FromIDColumn, and a node join connects to whichever neighboring
// relationship carries its id column (left, or right when this is the
// chain's first node). The anchor is left with JoiningOn unset.
func buildJoiningOn(joins []Join, anchorIdx int) {
	for i := range joins {
		if i == anchorIdx {
			continue
		}
		j := &joins[i]
		if j.GraphRel != nil {
			prev := &joins[i-1]
			if prev.IDColumn != "" && j.FromIDColumn != "" {
				j.JoiningOn = []ast.Expression{equalityPredicate(j.TableAlias, j.FromIDColumn, prev.TableAlias, prev.IDColumn)}
			}
			continue
		}
		if i > 0 && joins[i-1].GraphRel != nil && j.IDColumn != "" && joins[i-1].ToIDColumn != "" {
			prev := &joins[i-1]
			j.JoiningOn = []ast.Expression{equalityPredicate(j.TableAlias, j.IDColumn, prev.TableAlias, prev.ToIDColumn)}
			continue
		}
		if i+1 < len(joins) && joins[i+1].GraphRel != nil && j.IDColumn != "" && joins[i+1].FromIDColumn != "" {
			next := &joins[i+1]
			j.JoiningOn = []ast.Expression{equalityPredicate(j.TableAlias, j.IDColumn, next.TableAlias, next.FromIDColumn)}
		}
	}
}

func equalityPredicate(leftAlias, leftCol, rightAlias, rightCol string) ast.Expression {
	return &ast.OperatorApplication{
		Operator: ast.OpEqual,
		Operands: []ast.Expression{
			&ast.PropertyAccess{Base: &ast.Variable{Name: leftAlias}, Key: leftCol},
			&ast.PropertyAccess{Base: &ast.Variable{Name: rightAlias}, Key: rightCol},
		},
	}
}

func collectJoins(p Plan, out *[]Join) {
	switch n := p.(type) {
	case *GraphNode:
		if scan, ok := n.Input.(*ViewScan); ok {
			*out = append(*out, Join{
				TableName:  scan.SourceTable,
				TableAlias: n.Alias,
				JoinType:   JoinInner,
				PreFilter:  nil,
				IDColumn:   scan.IDColumn,
			})
		}
		collectJoins(n.Input, out)
	case *GraphRel:
		collectJoins(n.Left, out)
		scan, _ := n.Center.(*ViewScan)
		jt := JoinInner
		if n.IsOptional {
			jt = JoinLeft
		}
		j := Join{
			TableAlias: n.Alias,
			JoinType:   jt,
			GraphRel:   n,
			PreFilter:  n.WherePredicate,
		}
		if scan != nil {
			j.TableName = scan.SourceTable
			j.FromIDColumn = scan.FromID
			j.ToIDColumn = scan.ToID
		}
		if n.VlpShape != nil {
			// Read from the hop's recursive CTE, whose rows carry the
			// path endpoints as start_id/end_id.
			j.TableAlias = cte.FromAlias
			j.FromIDColumn, j.ToIDColumn = "start_id", "end_id"
		}
		*out = append(*out, j)
		collectJoins(n.Right, out)
	case *CartesianProduct:
		collectJoins(n.Left, out)
		collectJoins(n.Right, out)
	case *Filter:
		collectJoins(n.Input, out)
	}
}

// planWith lowers a WITH clause into a WithClause scope barrier: a new
// scope frame is pushed and every item is bound as a CTE-column alias
// using the `p{N}_alias_property` naming scheme (spec.md §3.3, §4.2).
func (b *Builder) planWith(w *ast.WithClause, input Plan) (Plan, error) {
	cteName := fmt.Sprintf("with_%d", b.ctes.NextSequence())
	seq := b.ctes.NextSequence()

	b.scope.Push(true)

	var items []WithClauseItem
	var cols []cte.ColumnMetadata
	for _, it := range w.Items {
		alias := it.Alias
		property := ""
		if pa, ok := it.Expression.(*ast.PropertyAccess); ok {
			property = pa.Key
		}
		emitted := cte.ExportedColumnName(seq, alias, property)
		items = append(items, WithClauseItem{Expr: it.Expression, Alias: alias})
		cols = append(cols, cte.ColumnMetadata{CteColumnName: emitted, CypherAlias: alias, CypherProperty: property})
		b.scope.Bind(alias, AliasBinding{Source: SourceCteColumn, CteName: cteName, CteColumn: emitted})
	}
	b.ctes.RegisterColumns(cteName, cols)
	if len(items) > 0 {
		b.withAlias = items[0].Alias
	}

	// Aggregating items group on the non-aggregate items; the WITH's WHERE
	// then becomes that grouping's HAVING.
	gb := &GroupBy{Input: input}
	for _, it := range w.Items {
		if containsAggregate(it.Expression) {
			gb.Aggregates = append(gb.Aggregates, ProjectionItem{Expr: it.Expression, Alias: it.Alias})
		} else {
			gb.Expressions = append(gb.Expressions, it.Expression)
		}
	}
	if len(gb.Aggregates) > 0 {
		if w.Where != nil {
			gb.Having = w.Where.Predicate
		}
		input = gb
	}

	var plan Plan = &WithClause{Items: items, Input: input, CteReferences: map[string]string{cteName: cteName}}
	if w.Where != nil && len(gb.Aggregates) == 0 {
		plan = &Filter{Predicate: w.Where.Predicate, Input: plan}
	}
	if w.OrderBy != nil {
		var oitems []OrderItem
		for _, it := range w.OrderBy.Items {
			oitems = append(oitems, OrderItem{Expr: it.Expression, Direction: it.Direction})
		}
		plan = &OrderBy{Items: oitems, Input: plan}
	}
	if w.Skip != nil {
		plan = &Skip{Count: w.Skip.Expression, Input: plan}
	}
	if w.Limit != nil {
		plan = &Limit{Count: w.Limit.Expression, Input: plan}
	}
	return plan, nil
}

// planReturn lowers a RETURN clause into a Projection, or a GroupBy when
// any item contains an aggregate function call (spec.md §4.2 DISTINCT
// preservation, §3.2 GroupBy).
func (b *Builder) planReturn(r *ast.ReturnClause, input Plan) (Plan, error) {
	if r.Star {
		return &Projection{Distinct: r.Distinct, Input: input}, nil
	}
	hasAggregate := false
	for _, it := range r.Items {
		if containsAggregate(it.Expression) {
			hasAggregate = true
			break
		}
	}
	if !hasAggregate {
		var items []ProjectionItem
		for _, it := range r.Items {
			items = append(items, ProjectionItem{Expr: it.Expression, Alias: it.Alias})
		}
		return &Projection{Items: items, Distinct: r.Distinct, Input: input}, nil
	}

	var groupExprs []ast.Expression
	var aggregates []ProjectionItem
	for _, it := range r.Items {
		if containsAggregate(it.Expression) {
			aggregates = append(aggregates, ProjectionItem{Expr: it.Expression, Alias: it.Alias})
		} else {
			groupExprs = append(groupExprs, it.Expression)
		}
	}
	return &GroupBy{Expressions: groupExprs, Aggregates: aggregates, Input: input}, nil
}

var aggregateNames = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

func containsAggregate(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.FunctionCall:
		if aggregateNames[lowerASCII(v.Name)] {
			return true
		}
		for _, a := range v.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.OperatorApplication:
		for _, o := range v.Operands {
			if containsAggregate(o) {
				return true
			}
		}
	}
	return false
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// planCreate, planSet, planRemove, planDelete represent write clauses
// structurally. The physical execution of writes (transaction
// isolation, durable mutation) is out of scope (spec.md §1 Non-goals);
// these only preserve the clause in the tree so a future execution
// layer has a well-formed plan to act on.

type WriteOp int

const (
	WriteCreate WriteOp = iota
	WriteSet
	WriteRemove
	WriteDelete
)

// WriteNode is a structural placeholder for a write clause; it is never
// lowered to SQL by the render planner (spec.md Non-goals: write-
// transaction isolation is out of scope for this core).
type WriteNode struct {
	Op      WriteOp
	Create  *ast.CreateClause
	Set     *ast.SetClause
	Remove  *ast.RemoveClause
	Delete  *ast.DeleteClause
	Input   Plan
}

func (*WriteNode) isPlan()          {}
func (w *WriteNode) Children() []Plan { return []Plan{w.Input} }

func (b *Builder) planCreate(c *ast.CreateClause, input Plan) Plan {
	return &WriteNode{Op: WriteCreate, Create: c, Input: input}
}
func (b *Builder) planSet(s *ast.SetClause, input Plan) Plan {
	return &WriteNode{Op: WriteSet, Set: s, Input: input}
}
func (b *Builder) planRemove(r *ast.RemoveClause, input Plan) Plan {
	return &WriteNode{Op: WriteRemove, Remove: r, Input: input}
}
func (b *Builder) planDelete(d *ast.DeleteClause, input Plan) Plan {
	return &WriteNode{Op: WriteDelete, Delete: d, Input: input}
}

// Branch pairs one UNION branch's plan with the Builder state the
// render planner needs to finish the job: the CTE manager that
// allocated its VLP/WITH names and the scope that resolved its
// aliases (spec.md §4.3: "the CTE manager is the single source of
// truth", consulted again at render time).
type Branch struct {
	Plan  Plan
	Ctes  *cte.Manager
	Scope *Scope
}

// StatementPlan is the lowering of a full CypherStatement: one Branch
// per UNION branch plus the union types joining them.
type StatementPlan struct {
	Branches []Branch
	Unions   []ast.UnionClause
}

// BuildStatement lowers every UNION branch of a statement with its own
// Builder (each branch is its own scope/CTE-manager scope, per spec.md
// glossary "Scope barrier": a UNION branch hides its inputs from the
// others).
func BuildStatement(stmt *ast.Statement, schema catalog.GraphSchema, opts Options) (*StatementPlan, error) {
	sp := &StatementPlan{Unions: stmt.Unions}
	for _, q := range stmt.Queries {
		b := NewBuilder(schema, opts)
		p, err := b.Build(q)
		if err != nil {
			return nil, err
		}
		sp.Branches = append(sp.Branches, Branch{Plan: p, Ctes: b.CteManager(), Scope: b.Scope()})
	}
	return sp, nil
}
