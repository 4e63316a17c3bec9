package catalog

import "testing"

func TestLoadFixtureRoundTrip(t *testing.T) {
	schema, err := LoadFixture(DemoFixture)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	person, ok := schema.Label("Person")
	if !ok {
		t.Fatalf("expected Person label")
	}
	if person.SourceTable != "persons" || person.IDColumn != "person_id" {
		t.Errorf("Person table/id = %q/%q, want persons/person_id", person.SourceTable, person.IDColumn)
	}
	if col, ok := person.Property("name"); !ok || col != "full_name" {
		t.Errorf("Person.name = %q, %v, want full_name, true", col, ok)
	}

	worksAt, ok := schema.RelationshipType("WORKS_AT")
	if !ok {
		t.Fatalf("expected WORKS_AT relationship")
	}
	if !worksAt.IsDenormalized {
		t.Errorf("expected WORKS_AT to be denormalized")
	}
	if col := worksAt.ToNodeProps["name"]; col != "employer_name" {
		t.Errorf("WORKS_AT.to_node_properties.name = %q, want employer_name", col)
	}
}

func TestLoadFixtureInvalidJSON(t *testing.T) {
	if _, err := LoadFixture("not json"); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestLoadFixtureMissingRequiredFields(t *testing.T) {
	_, err := LoadFixture(`{"labels": {"Broken": {"properties": {}}}}`)
	if err == nil {
		t.Fatalf("expected error for label missing table/id")
	}
	if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
}

func TestDumpFixtureRoundTrip(t *testing.T) {
	schema := NewStaticSchema().AddLabel(&LabelSchema{
		Label: "User", SourceTable: "users", IDColumn: "id",
		PropertyMap: map[string]string{"name": "full_name"},
	})
	doc, err := DumpFixture(schema)
	if err != nil {
		t.Fatalf("DumpFixture: %v", err)
	}

	reloaded, err := LoadFixture(doc)
	if err != nil {
		t.Fatalf("LoadFixture(dumped): %v", err)
	}
	l, ok := reloaded.Label("User")
	if !ok || l.SourceTable != "users" || l.IDColumn != "id" {
		t.Errorf("round-tripped label = %+v, ok=%v", l, ok)
	}
}

func TestMustLoadDemoFixture(t *testing.T) {
	schema := MustLoadDemoFixture()
	if _, ok := schema.Label("Company"); !ok {
		t.Errorf("expected Company label in demo fixture")
	}
	if _, ok := schema.RelationshipType("FOLLOWS"); !ok {
		t.Errorf("expected FOLLOWS relationship in demo fixture")
	}
}
