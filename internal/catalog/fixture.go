package catalog

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LoadFixture builds a StaticSchema from a small JSON document, used by
// package tests in place of the production YAML catalog loader (which is
// out of scope per spec.md §1). The document shape:
//
//	{
//	  "labels": {
//	    "User": {"table": "users", "id": "user_id", "properties": {"name": "full_name"}}
//	  },
//	  "relationships": {
//	    "FOLLOWS": {"table": "user_follows_user", "from_id": "follower_id", "to_id": "followee_id"}
//	  }
//	}
func LoadFixture(doc string) (*StaticSchema, error) {
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("catalog fixture: invalid JSON")
	}
	schema := NewStaticSchema()

	labels := gjson.Get(doc, "labels")
	var rangeErr error
	labels.ForEach(func(key, value gjson.Result) bool {
		l := &LabelSchema{
			Label:       key.String(),
			SourceTable: value.Get("table").String(),
			IDColumn:    value.Get("id").String(),
			PropertyMap: map[string]string{},
			ViewFilter:  value.Get("view_filter").String(),
			UseFinal:    value.Get("use_final").Bool(),
		}
		if l.SourceTable == "" || l.IDColumn == "" {
			rangeErr = &SchemaError{Identifier: key.String(), Reason: "fixture missing table/id"}
			return false
		}
		value.Get("properties").ForEach(func(pk, pv gjson.Result) bool {
			l.PropertyMap[pk.String()] = pv.String()
			return true
		})
		value.Get("view_parameters").ForEach(func(_, pv gjson.Result) bool {
			l.ViewParameters = append(l.ViewParameters, pv.String())
			return true
		})
		schema.AddLabel(l)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}

	rels := gjson.Get(doc, "relationships")
	rels.ForEach(func(key, value gjson.Result) bool {
		r := &RelationshipSchema{
			Type:           key.String(),
			SourceTable:    value.Get("table").String(),
			FromIDColumn:   value.Get("from_id").String(),
			ToIDColumn:     value.Get("to_id").String(),
			IsDenormalized: value.Get("denormalized").Bool(),
			PropertyMap:    map[string]string{},
			ViewFilter:     value.Get("view_filter").String(),
			UseFinal:       value.Get("use_final").Bool(),
		}
		if r.SourceTable == "" || r.FromIDColumn == "" || r.ToIDColumn == "" {
			rangeErr = &SchemaError{Identifier: key.String(), Reason: "fixture missing table/from_id/to_id"}
			return false
		}
		value.Get("properties").ForEach(func(pk, pv gjson.Result) bool {
			r.PropertyMap[pk.String()] = pv.String()
			return true
		})
		if r.IsDenormalized {
			r.FromNodeProps = map[string]string{}
			r.ToNodeProps = map[string]string{}
			value.Get("from_node_properties").ForEach(func(pk, pv gjson.Result) bool {
				r.FromNodeProps[pk.String()] = pv.String()
				return true
			})
			value.Get("to_node_properties").ForEach(func(pk, pv gjson.Result) bool {
				r.ToNodeProps[pk.String()] = pv.String()
				return true
			})
		}
		schema.AddRelationshipType(r)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}

	return schema, nil
}

// DumpFixture renders a StaticSchema back to the fixture JSON shape;
// mainly useful for golden-file tests that want to round-trip a schema
// built programmatically.
func DumpFixture(s *StaticSchema) (string, error) {
	doc := "{}"
	var err error
	for _, name := range s.Labels() {
		l := s.labels[name]
		base := fmt.Sprintf("labels.%s", name)
		if doc, err = sjson.Set(doc, base+".table", l.SourceTable); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, base+".id", l.IDColumn); err != nil {
			return "", err
		}
		for k, v := range l.PropertyMap {
			if doc, err = sjson.Set(doc, fmt.Sprintf("%s.properties.%s", base, k), v); err != nil {
				return "", err
			}
		}
	}
	for _, name := range s.RelationshipTypes() {
		r := s.relationships[name]
		base := fmt.Sprintf("relationships.%s", name)
		if doc, err = sjson.Set(doc, base+".table", r.SourceTable); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, base+".from_id", r.FromIDColumn); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, base+".to_id", r.ToIDColumn); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, base+".denormalized", r.IsDenormalized); err != nil {
			return "", err
		}
	}
	return doc, nil
}
