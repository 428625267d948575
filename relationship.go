package jsonapifu

import (
	"strings"

	"github.com/pkg/errors"
)

// RelationshipDefinition declares one relationship accepted under /data/relationships.
type RelationshipDefinition struct {
	// The JSON:API relationship name, as it appears in documents.
	Name string

	// As is the alias the wire param is built from: to-one relationships emit "{as}_id" and
	// to-many relationships emit "{as}_ids". It must be singular. Defaults to Name for to-one
	// relationships and to the singular of Name for to-many relationships.
	As string

	// Schema references the related resource's schema. Use LazySchemaRef to reference schemas
	// that form a cycle.
	Schema *SchemaRef

	// HasMany declares a to-many relationship whose linkage is an array of resource identifiers.
	HasMany bool
}

// Relationship is a compiled relationship declaration.
type Relationship struct {
	name    string
	as      string
	hasMany bool
	ref     *SchemaRef
}

func newRelationship(def RelationshipDefinition) (*Relationship, error) {
	if def.Name == "" {
		return nil, errors.New("relationship definitions must have a name")
	} else if err := ValidateMemberName(def.Name); err != nil {
		return nil, err
	} else if def.Schema == nil {
		return nil, errors.New("relationship definitions must reference a schema")
	}
	as := def.As
	if as == "" {
		as = def.Name
		if def.HasMany {
			as = singularize(def.Name)
		}
	} else if err := ValidateMemberName(as); err != nil {
		return nil, err
	}
	if def.HasMany && singularize(as) != as {
		return nil, errors.Errorf("use a singular relationship alias: %v", singularize(as))
	}
	return &Relationship{
		name:    def.Name,
		as:      as,
		hasMany: def.HasMany,
		ref:     def.Schema,
	}, nil
}

// ParamName returns the key the relationship's resolved id value(s) are emitted under.
func (r *Relationship) ParamName() string {
	if r.hasMany {
		return r.as + "_ids"
	}
	return r.as + "_id"
}

func (r *Relationship) schema() *Schema {
	return r.ref.Schema()
}

func (r *Relationship) resourceType() string {
	return r.schema().resourceType
}

// singularize covers the plural forms JSON:API relationship names take in practice. It is not a
// general English inflector.
func singularize(s string) string {
	if strings.HasSuffix(s, "ies") && len(s) > 3 {
		return s[:len(s)-3] + "y"
	}
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1 {
		return s[:len(s)-1]
	}
	return s
}
