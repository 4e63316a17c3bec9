// Package sqlgen is the deterministic formatter from a render.RenderPlan
// to a SQL string targeting a ClickHouse-style dialect (C10, spec.md
// §4.4/§6.6). Pure formatting: no further planning decisions are made
// here. Grounded on trigo/internal/sparql/evaluator's dispatch-table
// style (operators.go/functions.go) for expression-to-text rendering.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cyphersql/core/internal/cypher/ast"
	"github.com/cyphersql/core/internal/planner/render"
)

// Emit formats rp as a complete SQL statement.
func Emit(rp *render.RenderPlan) (string, error) {
	var b strings.Builder
	if err := emitPlan(&b, rp); err != nil {
		return "", err
	}
	return b.String(), nil
}

func emitPlan(b *strings.Builder, rp *render.RenderPlan) error {
	if len(rp.Union) > 0 {
		return emitUnion(b, rp)
	}

	if len(rp.Ctes) > 0 {
		if err := emitCtes(b, rp.Ctes); err != nil {
			return err
		}
	}

	b.WriteString("SELECT ")
	if rp.Select.Distinct {
		b.WriteString("DISTINCT ")
	}
	if err := emitSelectList(b, rp.Select.Items); err != nil {
		return err
	}

	if rp.From != nil {
		b.WriteString(" FROM ")
		emitTableRef(b, rp.From)
	} else if rp.FromCte != "" {
		fmt.Fprintf(b, " FROM %s AS %s", quoteIdent(rp.FromCte), render_FromAlias())
	}

	for _, j := range rp.Joins {
		if err := emitJoin(b, j); err != nil {
			return err
		}
	}

	for _, aj := range rp.ArrayJoins {
		b.WriteString(" ARRAY JOIN ")
		expr, err := emitExpr(aj.Expression)
		if err != nil {
			return err
		}
		b.WriteString(expr)
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(aj.Alias))
	}

	if len(rp.Filters) > 0 {
		b.WriteString(" WHERE ")
		if err := emitConjunction(b, rp.Filters); err != nil {
			return err
		}
	}

	if len(rp.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		if err := emitExprList(b, rp.GroupBy); err != nil {
			return err
		}
	}

	if rp.Having != nil {
		b.WriteString(" HAVING ")
		expr, err := emitExpr(rp.Having)
		if err != nil {
			return err
		}
		b.WriteString(expr)
	}

	if len(rp.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, it := range rp.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			expr, err := emitExpr(it.Expr)
			if err != nil {
				return err
			}
			b.WriteString(expr)
			if it.Direction == ast.Descending {
				b.WriteString(" DESC")
			}
		}
	}

	if rp.Skip != nil {
		expr, err := emitExpr(rp.Skip)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, " OFFSET %s", expr)
	}
	if rp.Limit != nil {
		expr, err := emitExpr(rp.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, " LIMIT %s", expr)
	}

	return nil
}

func render_FromAlias() string { return "t" }

func emitUnion(b *strings.Builder, rp *render.RenderPlan) error {
	sep := " UNION "
	if rp.UnionType == ast.UnionAll {
		sep = " UNION ALL "
	}
	for i, branch := range rp.Union {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString("(")
		if err := emitPlan(b, branch); err != nil {
			return err
		}
		b.WriteString(")")
	}
	return nil
}

// emitCtes writes a WITH (or WITH RECURSIVE) block in definition order
// (spec.md §4.4 SQL emitter rules).
func emitCtes(b *strings.Builder, ctes []render.Cte) error {
	recursive := false
	for _, c := range ctes {
		if c.IsRecursive {
			recursive = true
			break
		}
	}
	if recursive {
		b.WriteString("WITH RECURSIVE ")
	} else {
		b.WriteString("WITH ")
	}
	for i, c := range ctes {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s AS (", quoteIdent(c.Name))
		if c.Content.RawSQL != "" {
			b.WriteString(c.Content.RawSQL)
		} else if c.Content.Structured != nil {
			if err := emitPlan(b, c.Content.Structured); err != nil {
				return err
			}
		}
		b.WriteString(")")
	}
	b.WriteString(" ")
	return nil
}

func emitSelectList(b *strings.Builder, items []render.SelectItem) error {
	if len(items) == 0 {
		b.WriteString("*")
		return nil
	}
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := emitExpr(it.Expr)
		if err != nil {
			return err
		}
		b.WriteString(expr)
		if it.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(quoteIdent(it.Alias))
		}
	}
	return nil
}

func emitTableRef(b *strings.Builder, ref *render.ViewTableRef) {
	b.WriteString(emitViewTableRefString(ref))
}

// emitViewTableRefString renders a table reference, with parameterized
// views rendering as `name(p = $p, ...)` (spec.md §3.3/§4.4).
func emitViewTableRefString(ref *render.ViewTableRef) string {
	var b strings.Builder
	b.WriteString(quoteIdent(ref.Name))
	if len(ref.ViewParameters) > 0 {
		b.WriteString("(")
		for i, p := range ref.ViewParameters {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = $%s", p, p)
		}
		b.WriteString(")")
	}
	if ref.UseFinal {
		b.WriteString(" FINAL")
	}
	if ref.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(ref.Alias))
	}
	return b.String()
}

func emitJoin(b *strings.Builder, j render.Join) error {
	switch j.JoinType {
	case render.JoinLeft:
		b.WriteString(" LEFT JOIN ")
	case render.JoinRight:
		b.WriteString(" RIGHT JOIN ")
	case render.JoinCross:
		b.WriteString(" CROSS JOIN ")
	default:
		b.WriteString(" JOIN ")
	}

	ref := &render.ViewTableRef{Name: j.TableName, Alias: j.TableAlias}
	if j.PreFilter != nil {
		// A join carrying a pre-filter (typically an OPTIONAL MATCH's
		// attached WHERE) renders as a derived-subquery join, keeping the
		// filter on the optional side rather than the outer WHERE
		// (spec.md §4.2/§8 invariant 8).
		pre, err := emitExpr(j.PreFilter)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "(SELECT * FROM %s WHERE %s) AS %s", quoteIdent(j.TableName), pre, quoteIdent(j.TableAlias))
	} else {
		b.WriteString(emitViewTableRefString(ref))
	}

	if len(j.JoiningOn) > 0 {
		b.WriteString(" ON ")
		if err := emitConjunction(b, j.JoiningOn); err != nil {
			return err
		}
	}
	return nil
}

// emitConjunction wraps each operand in parentheses so AND/OR precedence
// is preserved when filters from multiple sources (user, schema, cycle-
// prevention) are combined (spec.md §4.4 SQL emitter rules).
func emitConjunction(b *strings.Builder, exprs []ast.Expression) error {
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(" AND ")
		}
		expr, err := emitExpr(e)
		if err != nil {
			return err
		}
		b.WriteString("(")
		b.WriteString(expr)
		b.WriteString(")")
	}
	return nil
}

func emitExprList(b *strings.Builder, exprs []ast.Expression) error {
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := emitExpr(e)
		if err != nil {
			return err
		}
		b.WriteString(expr)
	}
	return nil
}

var binaryOps = map[ast.Operator]string{
	ast.OpOr: "OR", ast.OpAnd: "AND", ast.OpXor: "XOR",
	ast.OpEqual: "=", ast.OpNotEqual: "!=",
	ast.OpLessThan: "<", ast.OpLessThanOrEqual: "<=",
	ast.OpGreaterThan: ">", ast.OpGreaterThanOrEqual: ">=",
	ast.OpRegexMatch: "REGEXP",
	ast.OpIn:         "IN", ast.OpNotIn: "NOT IN",
	ast.OpStartsWith: "STARTS WITH", ast.OpEndsWith: "ENDS WITH", ast.OpContains: "CONTAINS",
	ast.OpAdd: "+", ast.OpSubtract: "-", ast.OpMultiply: "*", ast.OpDivide: "/", ast.OpModulo: "%", ast.OpExponent: "^",
}

// emitExpr renders one expression node as SQL text (C10 §4.4/§6.6 rules:
// property accesses always emit `alias.column`, parameters keep their
// `$name` form).
func emitExpr(e ast.Expression) (string, error) {
	switch v := e.(type) {
	case nil:
		return "", nil
	case *ast.Literal:
		return emitLiteral(v), nil
	case *ast.Variable:
		return quoteIdent(v.Name), nil
	case *ast.Parameter:
		return "$" + v.Name, nil
	case *ast.PropertyAccess:
		base, err := emitExpr(v.Base)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s", base, quoteIdent(v.Key)), nil
	case *ast.FunctionCall:
		return emitFunctionCall(v)
	case *ast.OperatorApplication:
		return emitOperatorApplication(v)
	case *ast.ListLiteral:
		var parts []string
		for _, item := range v.Items {
			s, err := emitExpr(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *ast.MapLiteral:
		var parts []string
		for _, entry := range v.Entries {
			s, err := emitExpr(entry.Value)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("'%s', %s", entry.Key, s))
		}
		return "map(" + strings.Join(parts, ", ") + ")", nil
	case *ast.CaseExpression:
		return emitCase(v)
	default:
		return "", &render.RenderError{Offending: fmt.Sprintf("%T", e), Reason: "no SQL emission rule for this expression"}
	}
}

func emitLiteral(l *ast.Literal) string {
	switch l.Kind {
	case ast.LitString:
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	case ast.LitInteger:
		return strconv.FormatInt(l.Int, 10)
	case ast.LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case ast.LitBoolean:
		if l.Bool {
			return "true"
		}
		return "false"
	case ast.LitNull:
		return "NULL"
	default:
		return l.Text
	}
}

func emitFunctionCall(fc *ast.FunctionCall) (string, error) {
	var parts []string
	for _, a := range fc.Args {
		s, err := emitExpr(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	args := strings.Join(parts, ", ")
	if fc.Distinct {
		args = "DISTINCT " + args
	}
	return fmt.Sprintf("%s(%s)", fc.Name, args), nil
}

func emitOperatorApplication(op *ast.OperatorApplication) (string, error) {
	switch op.Operator {
	case ast.OpNot:
		inner, err := emitExpr(op.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case ast.OpNeg:
		inner, err := emitExpr(op.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("-(%s)", inner), nil
	case ast.OpIsNull:
		inner, err := emitExpr(op.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS NULL", inner), nil
	case ast.OpIsNotNull:
		inner, err := emitExpr(op.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS NOT NULL", inner), nil
	case ast.OpDistinct:
		inner, err := emitExpr(op.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DISTINCT %s", inner), nil
	}

	symbol, ok := binaryOps[op.Operator]
	if !ok || len(op.Operands) != 2 {
		return "", &render.RenderError{Offending: fmt.Sprintf("operator %d", op.Operator), Reason: "no SQL emission rule for this operator"}
	}
	left, err := emitExpr(op.Operands[0])
	if err != nil {
		return "", err
	}
	right, err := emitExpr(op.Operands[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s) %s (%s)", left, symbol, right), nil
}

func emitCase(c *ast.CaseExpression) (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	if c.Scrutinee != nil {
		s, err := emitExpr(c.Scrutinee)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + s)
	}
	for _, wt := range c.Branches {
		when, err := emitExpr(wt.When)
		if err != nil {
			return "", err
		}
		then, err := emitExpr(wt.Then)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", when, then)
	}
	if c.Else != nil {
		e, err := emitExpr(c.Else)
		if err != nil {
			return "", err
		}
		b.WriteString(" ELSE " + e)
	}
	b.WriteString(" END")
	return b.String(), nil
}

// quoteIdent backtick-quotes an identifier only when it isn't a plain
// [A-Za-z_][A-Za-z0-9_]* word, keeping ordinary aliases readable in the
// emitted SQL.
func quoteIdent(name string) string {
	if name == "" || name == "*" {
		return name
	}
	for i, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return "`" + name + "`"
	}
	return name
}
