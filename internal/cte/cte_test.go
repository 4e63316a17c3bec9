package cte

import "testing"

func TestNameForIsDeterministicAndMemoized(t *testing.T) {
	m := NewManager()
	key := VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 3}

	first := m.NameFor(key)
	second := m.NameFor(key)
	if first != second {
		t.Errorf("NameFor not memoized: %q != %q", first, second)
	}

	other := NewManager().NameFor(key)
	if other != first {
		t.Errorf("NameFor not deterministic across managers: %q != %q", other, first)
	}

	diff := m.NameFor(VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 4})
	if diff == first {
		t.Errorf("expected distinct names for distinct keys, both got %q", first)
	}
}

func TestExportedColumnName(t *testing.T) {
	if got := ExportedColumnName(1, "u", "name"); got != "p1_u_name" {
		t.Errorf("ExportedColumnName = %q, want p1_u_name", got)
	}
	if got := ExportedColumnName(2, "u", ""); got != "p2_u" {
		t.Errorf("ExportedColumnName with no property = %q, want p2_u", got)
	}
}

func TestNextSequenceIncrements(t *testing.T) {
	m := NewManager()
	if m.NextSequence() != 1 || m.NextSequence() != 2 || m.NextSequence() != 3 {
		t.Errorf("NextSequence did not increment monotonically")
	}
}

func TestRegisterAndResolveColumns(t *testing.T) {
	m := NewManager()
	m.RegisterColumns("cte1", []ColumnMetadata{
		{CteColumnName: "start_id", CypherProperty: "id", IsIDColumn: true},
		{CteColumnName: "p1_a_name", CypherProperty: "name"},
	})

	col, ok := m.Resolve("cte1", "name")
	if !ok || col != "p1_a_name" {
		t.Errorf("Resolve(name) = %q, %v, want p1_a_name, true", col, ok)
	}
	if _, ok := m.Resolve("cte1", "missing"); ok {
		t.Errorf("expected Resolve to fail for unregistered property")
	}
	if len(m.Columns("cte1")) != 2 {
		t.Errorf("expected 2 registered columns, got %d", len(m.Columns("cte1")))
	}
}

func TestBuildVlpShapeAppliesMaxHopsCeiling(t *testing.T) {
	m := NewManager()
	key := VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 0}

	shape := BuildVlpShape(m, key, []string{"user_follows_user"}, "follower_id", "followee_id", false, false, 15)

	if shape.MaxHops != 15 {
		t.Errorf("MaxHops = %d, want default ceiling 15", shape.MaxHops)
	}
	if !shape.PreventRevisit {
		t.Errorf("expected PreventRevisit true for a non-shortestPath walk")
	}
	if shape.AnchorIDColumn != "follower_id" || shape.GrowIDColumn != "followee_id" {
		t.Errorf("anchor/grow = %q/%q, want follower_id/followee_id", shape.AnchorIDColumn, shape.GrowIDColumn)
	}
}

func TestBuildVlpShapeReversedDirection(t *testing.T) {
	m := NewManager()
	key := VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 3}

	shape := BuildVlpShape(m, key, []string{"user_follows_user"}, "follower_id", "followee_id", true, false, 15)

	if shape.AnchorIDColumn != "followee_id" || shape.GrowIDColumn != "follower_id" {
		t.Errorf("reversed anchor/grow = %q/%q, want followee_id/follower_id", shape.AnchorIDColumn, shape.GrowIDColumn)
	}
}

func TestBuildVlpShapeShortestPathAllowsRevisit(t *testing.T) {
	m := NewManager()
	key := VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 10}

	shape := BuildVlpShape(m, key, []string{"user_follows_user"}, "follower_id", "followee_id", false, true, 15)

	if shape.PreventRevisit {
		t.Errorf("expected PreventRevisit false under shortestPath")
	}
	if !shape.IsShortestPath {
		t.Errorf("expected IsShortestPath true")
	}
}

func TestBuildVlpShapeRegistersOutputColumns(t *testing.T) {
	m := NewManager()
	key := VlpKey{StartAlias: "a", EndAlias: "b", Types: []string{"FOLLOWS"}, MinHops: 1, MaxHops: 3}

	shape := BuildVlpShape(m, key, []string{"user_follows_user"}, "follower_id", "followee_id", false, false, 15)

	cols := m.Columns(shape.Name)
	if len(cols) != 5 {
		t.Fatalf("expected 5 registered output columns, got %d", len(cols))
	}
	if cols[0].VlpPosition != PositionStart || cols[1].VlpPosition != PositionEnd {
		t.Errorf("expected first column Start, second End; got %v, %v", cols[0].VlpPosition, cols[1].VlpPosition)
	}
}
