package parser

import (
	"fmt"
	"strings"
)

// Breadcrumb records one labeled parse failure: the remaining input at the
// point of failure, and a human message, per spec.md §4.1/§7.
type Breadcrumb struct {
	Remaining string
	Message   string
}

// ParseError aggregates the breadcrumb trail produced while trying
// alternatives in the clause grammar. It is always returned, never panics.
type ParseError struct {
	Breadcrumbs []Breadcrumb
}

func (e *ParseError) Error() string {
	if len(e.Breadcrumbs) == 0 {
		return "parse error"
	}
	var b strings.Builder
	for i, c := range e.Breadcrumbs {
		if i > 0 {
			b.WriteString("; ")
		}
		remaining := c.Remaining
		if len(remaining) > 40 {
			remaining = remaining[:40] + "..."
		}
		fmt.Fprintf(&b, "%s (at %q)", c.Message, remaining)
	}
	return b.String()
}

func (p *Parser) fail(label string) error {
	return &ParseError{Breadcrumbs: []Breadcrumb{{
		Remaining: p.s.Input[p.s.Pos:],
		Message:   label,
	}}}
}

// wrap prepends a clause-level label to an inner error's breadcrumb trail,
// e.g. "Error in match clause".
func wrap(label string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ParseError
	if inner, ok := err.(*ParseError); ok {
		pe = inner
	} else {
		pe = &ParseError{Breadcrumbs: []Breadcrumb{{Message: err.Error()}}}
	}
	crumb := Breadcrumb{Message: label}
	if len(pe.Breadcrumbs) > 0 {
		crumb.Remaining = pe.Breadcrumbs[0].Remaining
	}
	return &ParseError{Breadcrumbs: append([]Breadcrumb{crumb}, pe.Breadcrumbs...)}
}

// DepthLimitError is returned when a relationship chain exceeds the
// configured maximum depth (spec.md §4.1, ≥ 50).
type DepthLimitError struct {
	Limit int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("path pattern exceeds the maximum chain depth of %d", e.Limit)
}

// UnsupportedError marks a recognized-but-not-implemented construct
// (pattern comprehensions), distinguishing it from a generic grammar
// failure so callers can surface a clear message (spec.md §4.1).
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct: %s", e.Construct)
}
