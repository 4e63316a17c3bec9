// Package procedure implements the procedure dispatcher (C11, spec.md
// §4.5): detecting procedure-only statements, running catalog
// procedures, and applying RETURN-clause transformations to their
// results without ever going through SQL rendering. Grounded on
// trigo/internal/sparql/executor's aggregate/row-wise execution split
// (executeSelect separates aggregate SELECT lists from row-wise ones)
// and on its evaluator's dispatch-table style for expression evaluation.
package procedure

import (
	"fmt"

	"github.com/cyphersql/core/internal/catalog"
	"github.com/cyphersql/core/internal/cypher/ast"
)

// Record is one procedure result row: field name -> value.
type Record map[string]any

// Func is a catalog procedure's executable body (spec.md §6.4):
// `fn(schema) -> Result<[]Record>`. UDF bodies themselves are out of
// scope; only this call contract is.
type Func func(schema catalog.GraphSchema) ([]Record, error)

// Registry resolves dotted, case-sensitive procedure names to their
// Func (spec.md §6.4). It is process-wide, initialized once, read-mostly
// (spec.md §5).
type Registry struct {
	procs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{procs: map[string]Func{}}
}

func (r *Registry) Register(name string, fn Func) {
	r.procs[name] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.procs[name]
	return fn, ok
}

// UnknownProcedureError reports a CALL naming a procedure absent from
// the registry.
type UnknownProcedureError struct {
	Name string
}

func (e *UnknownProcedureError) Error() string {
	return fmt.Sprintf("unknown procedure %q", e.Name)
}

// IsProcedureOnlyStatement reports whether every branch of stmt has a
// CALL clause and no reading clause, per spec.md §4.5: "UNION branches
// must all satisfy the same condition."
func IsProcedureOnlyStatement(stmt *ast.Statement) bool {
	if len(stmt.Queries) == 0 {
		return false
	}
	for _, q := range stmt.Queries {
		if !isProcedureOnlyQuery(q) {
			return false
		}
	}
	return true
}

func isProcedureOnlyQuery(q *ast.Query) bool {
	if q.Call == nil {
		return false
	}
	if len(q.Match) > 0 || len(q.OptionalMatch) > 0 {
		return false
	}
	if q.Create != nil || q.Set != nil || q.Delete != nil || q.Remove != nil {
		return false
	}
	return true
}

// Dispatch executes a procedure-only statement end to end: run CALL,
// apply YIELD projection, then RETURN transformation, concatenating
// UNION branches in order (spec.md §4.5, §8 end-to-end scenario 5).
func Dispatch(stmt *ast.Statement, registry *Registry, schema catalog.GraphSchema) ([]Record, error) {
	var all []Record
	for _, q := range stmt.Queries {
		records, err := executeCall(q.Call, registry, schema)
		if err != nil {
			return nil, err
		}
		records = applyYield(q.Call, records)
		if q.Return != nil {
			records, err = EvaluateReturn(q.Return, records)
			if err != nil {
				return nil, err
			}
		}
		all = append(all, records...)
	}
	return all, nil
}

func executeCall(call *ast.CallClause, registry *Registry, schema catalog.GraphSchema) ([]Record, error) {
	fn, ok := registry.Lookup(call.ProcedureName)
	if !ok {
		return nil, &UnknownProcedureError{Name: call.ProcedureName}
	}
	return fn(schema)
}

func applyYield(call *ast.CallClause, records []Record) []Record {
	if len(call.Yield) == 0 {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		filtered := Record{}
		for _, field := range call.Yield {
			if v, ok := r[field]; ok {
				filtered[field] = v
			}
		}
		out[i] = filtered
	}
	return out
}

// EvaluateReturn applies a RETURN clause to procedure records: an
// aggregate path (any item uses COLLECT/COUNT/SUM/AVG/MIN/MAX) produces
// a single record; otherwise each record is evaluated row-wise
// (spec.md §4.5).
func EvaluateReturn(r *ast.ReturnClause, records []Record) ([]Record, error) {
	if r.Star {
		return records, nil
	}

	hasAggregate := false
	for _, it := range r.Items {
		if isAggregateCall(it.Expression) {
			hasAggregate = true
			break
		}
	}

	if hasAggregate {
		out := Record{}
		for _, it := range r.Items {
			v, err := evalAggregate(it.Expression, records)
			if err != nil {
				return nil, err
			}
			out[resultAlias(it)] = v
		}
		return []Record{out}, nil
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		row := Record{}
		for _, it := range r.Items {
			v, err := evalRowWise(it.Expression, rec)
			if err != nil {
				return nil, err
			}
			row[resultAlias(it)] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func resultAlias(it ast.ReturnItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	return "expr"
}

var aggregateFuncs = map[string]bool{
	"collect": true, "count": true, "sum": true, "avg": true, "min": true, "max": true,
}

func isAggregateCall(e ast.Expression) bool {
	fc, ok := e.(*ast.FunctionCall)
	return ok && aggregateFuncs[fc.Name]
}

// UnsupportedExpressionError reports a RETURN-clause expression this
// mini-evaluator cannot handle (spec.md §4.5: "reported as unsupported
// rather than silently dropped").
type UnsupportedExpressionError struct {
	Kind string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("unsupported expression in procedure RETURN: %s", e.Kind)
}

func evalAggregate(e ast.Expression, records []Record) (any, error) {
	fc, ok := e.(*ast.FunctionCall)
	if !ok {
		// Non-aggregate item alongside an aggregate: evaluate against the
		// first record if any, else nil.
		if len(records) == 0 {
			return nil, nil
		}
		return evalRowWise(e, records[0])
	}
	switch fc.Name {
	case "count":
		return int64(len(records)), nil
	case "collect":
		if len(fc.Args) != 1 {
			return nil, &UnsupportedExpressionError{Kind: "collect() arity"}
		}
		var out []any
		for _, rec := range records {
			v, err := evalRowWise(fc.Args[0], rec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "sum", "avg", "min", "max":
		return evalNumericAggregate(fc, records)
	default:
		return nil, &UnsupportedExpressionError{Kind: fc.Name}
	}
}

func evalNumericAggregate(fc *ast.FunctionCall, records []Record) (any, error) {
	if len(fc.Args) != 1 {
		return nil, &UnsupportedExpressionError{Kind: fc.Name + "() arity"}
	}
	var values []float64
	for _, rec := range records {
		v, err := evalRowWise(fc.Args[0], rec)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return nil, nil
	}
	switch fc.Name {
	case "sum":
		var s float64
		for _, v := range values {
			s += v
		}
		return s, nil
	case "avg":
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), nil
	case "min":
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}
	return nil, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// evalRowWise evaluates a single RETURN-clause expression against one
// record's fields (spec.md §4.5 supported subset: literals, variables,
// map/list literals, property access, array slicing).
func evalRowWise(e ast.Expression, rec Record) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return literalValue(v), nil
	case *ast.Variable:
		return rec[v.Name], nil
	case *ast.PropertyAccess:
		base, err := evalRowWise(v.Base, rec)
		if err != nil {
			return nil, err
		}
		m, ok := base.(Record)
		if !ok {
			if mm, ok := base.(map[string]any); ok {
				m = Record(mm)
			} else {
				return nil, nil
			}
		}
		return m[v.Key], nil
	case *ast.ListLiteral:
		var out []any
		for _, item := range v.Items {
			val, err := evalRowWise(item, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *ast.MapLiteral:
		out := Record{}
		for _, entry := range v.Entries {
			val, err := evalRowWise(entry.Value, rec)
			if err != nil {
				return nil, err
			}
			out[entry.Key] = val
		}
		return out, nil
	case *ast.FunctionCall:
		if v.Name == "count" {
			return int64(1), nil
		}
		return nil, &UnsupportedExpressionError{Kind: v.Name}
	case *ast.SliceExpression:
		list, err := evalRowWise(v.List, rec)
		if err != nil {
			return nil, err
		}
		arr, ok := list.([]any)
		if !ok {
			return nil, nil
		}
		from, to := 0, len(arr)
		if v.From != nil {
			fv, err := evalRowWise(v.From, rec)
			if err != nil {
				return nil, err
			}
			if n, ok := toInt(fv); ok {
				from = n
			}
		}
		if v.To != nil {
			tv, err := evalRowWise(v.To, rec)
			if err != nil {
				return nil, err
			}
			if n, ok := toInt(tv); ok {
				to = n
			}
		}
		return Slice(arr, from, to), nil
	default:
		return nil, &UnsupportedExpressionError{Kind: fmt.Sprintf("%T", e)}
	}
}

func literalValue(l *ast.Literal) any {
	switch l.Kind {
	case ast.LitString:
		return l.Str
	case ast.LitInteger:
		return l.Int
	case ast.LitFloat:
		return l.Float
	case ast.LitBoolean:
		return l.Bool
	case ast.LitNull:
		return nil
	default:
		return l.Text
	}
}

// Slice performs `arr[from:to]` with Cypher slicing semantics: inclusive
// from, exclusive to, clamped to [0, len(arr)]. Called from evalRowWise's
// *ast.SliceExpression case; also exposed directly for callers that
// already hold a []any and an explicit range.
func Slice(arr []any, from, to int) []any {
	n := len(arr)
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to || from >= n {
		return nil
	}
	return arr[from:to]
}
