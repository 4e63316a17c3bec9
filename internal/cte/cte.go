// Package cte is the single source of truth for common-table-expression
// naming and column metadata (C8, spec.md §4.3): stable CTE names hashed
// from endpoint/hop/direction, and the column-metadata registry every
// downstream property access resolves against. Grounded on trigo's
// internal/encoding.TermEncoder.Hash128, which hashes RDF terms for
// stable index keys with zeebo/xxh3; here the same primitive hashes
// variable-length-path endpoints into a stable CTE name instead.
package cte

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// VlpPosition tags where a CTE column sits along a variable-length path.
type VlpPosition int

const (
	PositionNone VlpPosition = iota
	PositionStart
	PositionEnd
	PositionIntermediate
)

// ColumnMetadata is one entry of a CTE's column registry (spec.md §3.3).
type ColumnMetadata struct {
	CteColumnName string
	CypherAlias   string
	CypherProperty string
	DbColumn      string
	IsIDColumn    bool
	VlpPosition   VlpPosition
}

// FromAlias is the conventional FROM-clause alias every CTE reference
// uses (spec.md §4.3 "the FROM alias convention (t)").
const FromAlias = "t"

// Manager allocates CTE names, tracks per-CTE column metadata, and
// records VLP endpoint info. One Manager is created per query and
// discarded at query exit (spec.md §5, no thread-local state survives a
// query).
type Manager struct {
	names     map[string]string // stable key -> allocated name, for idempotent re-lookup within one query
	columns   map[string][]ColumnMetadata
	sequence  int
}

func NewManager() *Manager {
	return &Manager{
		names:   map[string]string{},
		columns: map[string][]ColumnMetadata{},
	}
}

// VlpKey identifies a variable-length-path CTE by its structural
// identity: the two endpoint aliases, the relationship type set, the
// hop bounds, and direction. Two patterns with the same key get the
// same CTE name within a query.
type VlpKey struct {
	StartAlias string
	EndAlias   string
	Types      []string
	MinHops    uint32
	MaxHops    uint32 // 0 means unbounded
	Direction  int
}

func (k VlpKey) canonical() string {
	s := fmt.Sprintf("%s|%s|%v|%d|%d|%d", k.StartAlias, k.EndAlias, k.Types, k.MinHops, k.MaxHops, k.Direction)
	return s
}

// NameFor returns the stable CTE name for a VLP key, generating it (via
// a 128-bit hash of the canonical key, spec.md §4.3) on first use and
// memoizing it for the remainder of the query.
func (m *Manager) NameFor(key VlpKey) string {
	canon := key.canonical()
	if name, ok := m.names[canon]; ok {
		return name
	}
	h := xxh3.Hash128([]byte(canon))
	name := fmt.Sprintf("vlp_%s_%s_%x", key.StartAlias, key.EndAlias, h.Hi^h.Lo)
	m.names[canon] = name
	return name
}

// NextSequence hands out the monotonically increasing sequence number
// used by the `p{N}_alias_property` WITH-export naming scheme (spec.md
// §3.3, §9 open question: only the newer scheme is supported here).
func (m *Manager) NextSequence() int {
	m.sequence++
	return m.sequence
}

// ExportedColumnName renders the deterministic emitted name for a
// WITH-exported value: `p{N}_{alias}_{property}` (spec.md §3.3). The
// legacy underscore-joined `alias_property` form named in spec.md §9 is
// intentionally not produced; see SPEC_FULL.md open question 2.
func ExportedColumnName(seq int, alias, property string) string {
	if property == "" {
		return fmt.Sprintf("p%d_%s", seq, alias)
	}
	return fmt.Sprintf("p%d_%s_%s", seq, alias, property)
}

// RegisterColumns records the column metadata for a named CTE, making it
// available to Resolve.
func (m *Manager) RegisterColumns(cteName string, cols []ColumnMetadata) {
	m.columns[cteName] = append(m.columns[cteName], cols...)
}

// Resolve looks up the emitted column name for (cteName, cypherProperty),
// consulted by SELECT/WHERE/ORDER BY rewriting (spec.md §3.3
// CteColumnRegistry).
func (m *Manager) Resolve(cteName, cypherProperty string) (string, bool) {
	for _, c := range m.columns[cteName] {
		if c.CypherProperty == cypherProperty {
			return c.CteColumnName, true
		}
	}
	return "", false
}

// Columns returns the recorded column metadata for a CTE, in
// registration order.
func (m *Manager) Columns(cteName string) []ColumnMetadata {
	return m.columns[cteName]
}

// VlpShape describes the structural pieces of a recursive path CTE the
// render planner needs to emit it (spec.md §4.3): the base case anchors
// the starting endpoint, the recursive case grows it by one hop, and
// termination is bounded by MaxHops (or, for shortestPath, the first
// reach of the target).
type VlpShape struct {
	Name            string
	AnchorIDColumn  string // from_id or to_id, depending on direction
	GrowIDColumn    string
	OtherEndColumn  string
	RelationTables  []string // multiple when the type list is `:A|B`
	MinHops         uint32
	MaxHops         uint32 // effective ceiling after applying the configured default
	PreventRevisit  bool   // false only under shortestPath
	IsShortestPath  bool
	OutputColumns   []ColumnMetadata
}

// BuildVlpShape derives the structural shape of a variable-length-path
// CTE from its key and relationship schema info. maxHopsCeiling is the
// configured default applied when the Cypher `*` form leaves max hops
// unbounded (spec.md §4.3, §9 open question 1).
func BuildVlpShape(m *Manager, key VlpKey, relTables []string, fromID, toID string, reversed bool, isShortestPath bool, maxHopsCeiling uint32) VlpShape {
	name := m.NameFor(key)
	anchor, grow := fromID, toID
	if reversed {
		anchor, grow = toID, fromID
	}
	maxHops := key.MaxHops
	if maxHops == 0 {
		maxHops = maxHopsCeiling
	}
	shape := VlpShape{
		Name:           name,
		AnchorIDColumn: anchor,
		GrowIDColumn:   grow,
		OtherEndColumn: grow,
		RelationTables: relTables,
		MinHops:        key.MinHops,
		MaxHops:        maxHops,
		PreventRevisit: !isShortestPath,
		IsShortestPath: isShortestPath,
		OutputColumns: []ColumnMetadata{
			{CteColumnName: "start_id", CypherAlias: key.StartAlias, IsIDColumn: true, VlpPosition: PositionStart},
			{CteColumnName: "end_id", CypherAlias: key.EndAlias, IsIDColumn: true, VlpPosition: PositionEnd},
			{CteColumnName: "hop_count", VlpPosition: PositionIntermediate},
			{CteColumnName: "path_nodes", VlpPosition: PositionIntermediate},
			{CteColumnName: "path_relationships", VlpPosition: PositionIntermediate},
		},
	}
	m.RegisterColumns(name, shape.OutputColumns)
	return shape
}
