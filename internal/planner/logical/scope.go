package logical

import "fmt"

// BindingSource tags where an alias's value ultimately comes from.
type BindingSource int

const (
	SourceCteColumn BindingSource = iota
	SourceTableColumn
)

// AliasBinding records how one alias resolves: either to a CTE column
// or to a table-backed column, per spec.md §3.2.
type AliasBinding struct {
	Source BindingSource

	// SourceCteColumn:
	CteName   string
	CteColumn string

	// SourceTableColumn:
	TableAlias string
	Label      string // the bound label, for property-mapping lookups
}

// Frame is one level of the scope stack. WITH pushes a new frame that
// hides aliases not re-exported (spec.md §3.2, §4.2 scope barriers).
type Frame struct {
	bindings map[string]AliasBinding
	barrier  bool // true for frames introduced by WITH/CTE/UNION branches
}

func newFrame(barrier bool) *Frame {
	return &Frame{bindings: map[string]AliasBinding{}, barrier: barrier}
}

// Scope is a stack of frames with forward resolution: a child frame can
// see bindings from parent frames unless a barrier frame re-hides them
// (spec.md §3.2 "resolution of alias.property is forward").
type Scope struct {
	frames []*Frame
}

// NewScope creates a scope with a single root (non-barrier) frame.
func NewScope() *Scope {
	return &Scope{frames: []*Frame{newFrame(false)}}
}

// Push opens a new frame. barrier=true for WITH/CTE/UNION-branch scopes.
func (s *Scope) Push(barrier bool) {
	s.frames = append(s.frames, newFrame(barrier))
}

// Pop closes the most recently opened frame.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Bind records a binding for alias in the current (topmost) frame.
func (s *Scope) Bind(alias string, binding AliasBinding) {
	s.frames[len(s.frames)-1].bindings[alias] = binding
}

// ResolutionKind distinguishes the three outcomes of resolve(alias,
// property) named in spec.md §3.2/§6: a CTE column, a table column, or
// unresolved.
type ResolutionKind int

const (
	Unresolved ResolutionKind = iota
	ResolvedCteColumn
	ResolvedDbColumn
)

// Resolution is the result of resolving `alias.property`.
type Resolution struct {
	Kind      ResolutionKind
	CteName   string
	CteColumn string
	TableAlias string
	Label      string
}

// Resolve looks up alias starting at the innermost frame and walking
// outward; once it passes a barrier frame whose bindings don't include
// alias, resolution fails for frames further out only if the alias was
// never (re-)exported by that barrier — i.e. a WITH frame's own
// bindings are authoritative for anything it names.
func (s *Scope) Resolve(alias string) (AliasBinding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if b, ok := f.bindings[alias]; ok {
			return b, true
		}
		if f.barrier {
			// A barrier frame hides everything it doesn't re-export; stop
			// walking past it once we've checked it, unless it's empty
			// (a WITH clause still under construction).
			if len(f.bindings) > 0 {
				return AliasBinding{}, false
			}
		}
	}
	return AliasBinding{}, false
}

// ResolveProperty resolves `alias.property` into a Resolution, per spec.md §3.2
// `resolve(alias, property) -> CteColumn | DbColumn | Unresolved`.
func (s *Scope) ResolveProperty(alias, property string) Resolution {
	b, ok := s.Resolve(alias)
	if !ok {
		return Resolution{Kind: Unresolved}
	}
	switch b.Source {
	case SourceCteColumn:
		return Resolution{Kind: ResolvedCteColumn, CteName: b.CteName, CteColumn: b.CteColumn}
	case SourceTableColumn:
		return Resolution{Kind: ResolvedDbColumn, TableAlias: b.TableAlias, Label: b.Label}
	default:
		return Resolution{Kind: Unresolved}
	}
}

// UnresolvedAliasError reports a reference to an alias not visible in
// any active scope frame.
type UnresolvedAliasError struct {
	Alias string
}

func (e *UnresolvedAliasError) Error() string {
	return fmt.Sprintf("unresolved alias %q", e.Alias)
}
