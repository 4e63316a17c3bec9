// Package logical lowers a parsed Cypher AST into a tree of algebraic
// operators (spec.md §3.2/§4.2), resolving variables against a scope
// stack (C7, scope.go) and binding labels/types against a GraphSchema.
// Grounded on trigo's internal/sparql/optimizer.QueryPlan family
// (ScanPlan/JoinPlan/FilterPlan/ProjectionPlan/...), generalized here
// from SPARQL triple patterns to Cypher graph patterns.
package logical

import (
	"github.com/cyphersql/core/internal/cte"
	"github.com/cyphersql/core/internal/cypher/ast"
)

// Plan is the sealed interface every logical operator implements.
type Plan interface {
	isPlan()
	Children() []Plan
}

// Empty is the terminal null source.
type Empty struct{}

func (*Empty) isPlan()          {}
func (*Empty) Children() []Plan { return nil }

// ViewScan is the base scan: a node table, relationship table, or
// denormalized edge table (spec.md §3.2).
type ViewScan struct {
	SourceTable         string
	PropertyMapping     map[string]string
	FromID              string // relationship scans: from-side id column
	ToID                string // relationship scans: to-side id column
	FromNodeProperties  map[string]string
	ToNodeProperties    map[string]string
	IDColumn            string
	ViewFilter          string
	SchemaFilter        string
	UseFinal            bool
	IsDenormalized      bool
	ViewParameterNames  []string
}

func (*ViewScan) isPlan()          {}
func (*ViewScan) Children() []Plan { return nil }

// GraphNode tags a ViewScan as a node binding under a Cypher alias.
type GraphNode struct {
	Alias            string
	Label            string
	ProjectedColumns []string
	Input            Plan
}

func (*GraphNode) isPlan()          {}
func (n *GraphNode) Children() []Plan { return []Plan{n.Input} }

// GraphRel is a single relationship hop; may nest (left/right children)
// to form chains built up by the planner.
type GraphRel struct {
	Alias            string
	Left             Plan // left node-side subtree
	Center           Plan // the relationship's own ViewScan
	Right            Plan // right node-side subtree
	LeftConnection   string // column on Center joining to Left's id
	RightConnection  string // column on Center joining to Right's id
	Direction        ast.Direction
	Labels           []string
	VariableLength   *ast.VariableLengthSpec
	IsOptional       bool
	ShortestPathMode ast.PathPatternKind
	PathVariable     string
	WherePredicate   ast.Expression
	VlpShape         *cte.VlpShape // set for variable-length hops; nil for fixed-length ones
}

func (*GraphRel) isPlan() {}
func (r *GraphRel) Children() []Plan {
	var kids []Plan
	if r.Left != nil {
		kids = append(kids, r.Left)
	}
	if r.Center != nil {
		kids = append(kids, r.Center)
	}
	if r.Right != nil {
		kids = append(kids, r.Right)
	}
	return kids
}

// Filter is a selection (sigma).
type Filter struct {
	Predicate ast.Expression
	Input     Plan
}

func (*Filter) isPlan()          {}
func (f *Filter) Children() []Plan { return []Plan{f.Input} }

// ProjectionItem is one projected expression, with an optional alias.
type ProjectionItem struct {
	Expr  ast.Expression
	Alias string
}

// Projection is a projection (pi).
type Projection struct {
	Items    []ProjectionItem
	Distinct bool
	Input    Plan
}

func (*Projection) isPlan()          {}
func (p *Projection) Children() []Plan { return []Plan{p.Input} }

// GroupBy is aggregation (Gamma).
type GroupBy struct {
	Expressions  []ast.Expression
	Aggregates   []ProjectionItem
	Having       ast.Expression
	ExposedAlias string
	Input        Plan
}

func (*GroupBy) isPlan()          {}
func (g *GroupBy) Children() []Plan { return []Plan{g.Input} }

// OrderItem pairs an expression with its sort direction.
type OrderItem struct {
	Expr      ast.Expression
	Direction ast.OrderDirection
}

// OrderBy is sorting (tau).
type OrderBy struct {
	Items []OrderItem
	Input Plan
}

func (*OrderBy) isPlan()          {}
func (o *OrderBy) Children() []Plan { return []Plan{o.Input} }

// Limit bounds the number of rows produced.
type Limit struct {
	Count ast.Expression
	Input Plan
}

func (*Limit) isPlan()          {}
func (l *Limit) Children() []Plan { return []Plan{l.Input} }

// Skip discards a number of leading rows.
type Skip struct {
	Count ast.Expression
	Input Plan
}

func (*Skip) isPlan()          {}
func (s *Skip) Children() []Plan { return []Plan{s.Input} }

// Unwind is a cartesian product with an array-valued input expression.
type Unwind struct {
	Expr  ast.Expression
	Alias string
	Input Plan
}

func (*Unwind) isPlan()          {}
func (u *Unwind) Children() []Plan { return []Plan{u.Input} }

// CartesianProduct is a cross product, optionally equi-predicated.
type CartesianProduct struct {
	Left, Right    Plan
	JoinCondition  ast.Expression
}

func (*CartesianProduct) isPlan() {}
func (c *CartesianProduct) Children() []Plan { return []Plan{c.Left, c.Right} }

// Union combines n inputs with set (Distinct) or bag (All) semantics.
type Union struct {
	Inputs    []Plan
	UnionType ast.UnionType
}

func (*Union) isPlan()          {}
func (u *Union) Children() []Plan { return u.Inputs }

// JoinType enumerates the relational join kinds a GraphJoins frame can
// materialize.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinCross
)

// Join is one relational join lifted from a GraphNode/GraphRel subtree.
// An empty JoiningOn marks the frame's FROM marker (spec.md invariant 6).
type Join struct {
	TableName      string
	TableAlias     string
	JoiningOn      []ast.Expression
	JoinType       JoinType
	PreFilter      ast.Expression
	IDColumn       string // GraphNode joins: this table's own id column
	FromIDColumn   string
	ToIDColumn     string
	GraphRel       *GraphRel // the source GraphRel, if any, for render-time lookups
}

// GraphJoins materializes a set of relational joins lifted from
// GraphRel/GraphNode trees, recording the anchor and cross-CTE
// correlations needed by the render planner (spec.md §3.2/§4.2).
type GraphJoins struct {
	Input                 Plan
	Joins                 []Join
	AnchorTable           string
	CteReferences         map[string]string // alias -> cte name
	CorrelationPredicates []ast.Expression
	PreferredAnchorAlias  string // most-recent WITH's exported alias, if any (spec.md §4.2 rule b)
}

func (*GraphJoins) isPlan()          {}
func (g *GraphJoins) Children() []Plan { return []Plan{g.Input} }

// Cte names a sub-plan for reuse.
type Cte struct {
	Name        string
	Input       Plan
	IsRecursive bool
}

func (*Cte) isPlan()          {}
func (c *Cte) Children() []Plan { return []Plan{c.Input} }

// WithClauseItem is one exported WITH projection item.
type WithClauseItem struct {
	Expr  ast.Expression
	Alias string
}

// WithClause is a scope barrier exporting a renamed projection
// (spec.md §3.2/§4.2).
type WithClause struct {
	Items         []WithClauseItem
	Input         Plan
	CteReferences map[string]string
}

func (*WithClause) isPlan()          {}
func (w *WithClause) Children() []Plan { return []Plan{w.Input} }
