package catalog

// DemoFixture is a small social-graph schema shared by both command-line
// binaries' demo/query paths: Person/Company nodes, a FOLLOWS edge and a
// denormalized WORKS_AT edge carrying employer properties.
const DemoFixture = `{
  "labels": {
    "Person": {
      "table": "persons",
      "id": "person_id",
      "properties": {"name": "full_name", "age": "age"}
    },
    "Company": {
      "table": "companies",
      "id": "company_id",
      "properties": {"name": "company_name"}
    }
  },
  "relationships": {
    "FOLLOWS": {
      "table": "person_follows_person",
      "from_id": "follower_id",
      "to_id": "followee_id"
    },
    "WORKS_AT": {
      "table": "person_works_at_company",
      "from_id": "person_id",
      "to_id": "company_id",
      "denormalized": true,
      "from_node_properties": {"name": "employee_name"},
      "to_node_properties": {"name": "employer_name"}
    }
  }
}`

// MustLoadDemoFixture loads DemoFixture, panicking on error: the fixture
// is a compile-time constant, so a load failure means this package is
// broken, not that caller input is bad.
func MustLoadDemoFixture() *StaticSchema {
	schema, err := LoadFixture(DemoFixture)
	if err != nil {
		panic(err)
	}
	return schema
}
