package jsonapifu

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Resource is implemented by domain objects that can be referenced by a JSON:API document.
type Resource interface {
	// IDValue returns the resource's value for an identifier field such as "id" or "slug".
	IDValue(field string) any
}

// ResourceLookup loads domain resources by an identifier field. It is the only external capability
// the deserializer depends on, and is treated as an opaque blocking read.
type ResourceLookup interface {
	// FindOne returns the resource whose `field` equals `value`, or nil if there is none.
	FindOne(ctx context.Context, field string, value string) (Resource, error)

	// FindMany returns every resource whose `field` is one of `values`. Absent values simply
	// produce fewer resources; callers decide whether that's fatal.
	FindMany(ctx context.Context, field string, values []string) ([]Resource, error)
}

// ResourceAuthorizer reports whether a looked-up resource may be referenced by the current
// request. The default authorizer allows everything.
type ResourceAuthorizer func(resource Resource) bool

// SchemaDefinition declares how documents for one resource type deserialize. Definitions are
// compiled into immutable Schema values via NewSchema.
type SchemaDefinition struct {
	// The JSON:API resource type. Convention is a lowercase, plural name such as "articles".
	ResourceType string

	// The identifier field used to look up resources. Defaults to "id".
	IDParam string

	// The attributes accepted under /data/attributes. These must not overlap with the
	// relationships.
	Attributes []AttributeDefinition

	// The relationships accepted under /data/relationships.
	Relationships []RelationshipDefinition

	// Lookup loads referenced resources. Required.
	Lookup ResourceLookup

	// Authorizer gates access to looked-up resources. Defaults to allowing everything.
	Authorizer ResourceAuthorizer

	// Logger receives a debug entry for every validation failure. Defaults to the standard
	// logrus logger.
	Logger logrus.FieldLogger
}

// Schema is a compiled, immutable schema definition. It is safe for concurrent use by any number
// of requests.
type Schema struct {
	resourceType        string
	idParam             string
	attributes          []*Attribute
	attributesByKey     map[string]*Attribute
	relationships       []*Relationship
	relationshipsByName map[string]*Relationship
	lookup              ResourceLookup
	authorizer          ResourceAuthorizer
	logger              logrus.FieldLogger
}

func NewSchema(def *SchemaDefinition) (*Schema, error) {
	if def.ResourceType == "" {
		return nil, errors.New("schema definitions must have a resource type")
	} else if err := ValidateMemberName(def.ResourceType); err != nil {
		return nil, errors.Wrap(err, "invalid resource type")
	} else if def.Lookup == nil {
		return nil, errors.New("schema definitions must have a resource lookup")
	}

	ret := &Schema{
		resourceType:        def.ResourceType,
		idParam:             def.IDParam,
		attributesByKey:     map[string]*Attribute{},
		relationshipsByName: map[string]*Relationship{},
		lookup:              def.Lookup,
		authorizer:          def.Authorizer,
		logger:              def.Logger,
	}
	if ret.idParam == "" {
		ret.idParam = "id"
	}
	if ret.authorizer == nil {
		ret.authorizer = func(Resource) bool { return true }
	}
	if ret.logger == nil {
		ret.logger = logrus.StandardLogger()
	}

	params := map[string]string{}

	for _, attrDef := range def.Attributes {
		attr, err := newAttribute(attrDef)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid attribute %v", attrDef.Name)
		}
		if _, ok := ret.attributesByKey[attr.as]; ok {
			return nil, errors.Errorf("duplicate attribute: %v", attr.as)
		}
		if existing, ok := params[attr.ParamName()]; ok {
			return nil, errors.Errorf("attribute %v collides with %v", attr.as, existing)
		}
		params[attr.ParamName()] = attr.as
		ret.attributesByKey[attr.as] = attr
		ret.attributes = append(ret.attributes, attr)
	}

	for _, relDef := range def.Relationships {
		rel, err := newRelationship(relDef)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid relationship %v", relDef.Name)
		}
		if _, ok := ret.relationshipsByName[rel.name]; ok {
			return nil, errors.Errorf("duplicate relationship: %v", rel.name)
		}
		if existing, ok := params[rel.ParamName()]; ok {
			return nil, errors.Errorf("relationship %v collides with %v", rel.name, existing)
		}
		params[rel.ParamName()] = rel.name
		ret.relationshipsByName[rel.name] = rel
		ret.relationships = append(ret.relationships, rel)
	}

	return ret, nil
}

// ResourceType returns the schema's JSON:API resource type.
func (s *Schema) ResourceType() string {
	return s.resourceType
}

// RequestOptions narrows a schema for one request. Options are applied when a document is
// processed and never mutate the declared schema.
type RequestOptions struct {
	// Attributes restricts which declared attributes the request may supply. Nil permits all of
	// them. Supplying a declared-but-excluded attribute is an authorization failure rather than an
	// unknown-attribute failure.
	Attributes []string

	// Relationships restricts which declared relationships the request may supply. Nil permits
	// all of them.
	Relationships []string

	// IDParam overrides the schema's identifier field.
	IDParam string

	// Lookup overrides the schema's resource lookup, e.g. to narrow it to an association.
	Lookup ResourceLookup

	// Authorizer overrides the schema's resource authorizer.
	Authorizer ResourceAuthorizer
}

// schemaScope is a schema as seen by one request: the declared schema plus any request options.
type schemaScope struct {
	schema        *Schema
	attributes    []*Attribute
	relationships []*Relationship
	idParam       string
	lookup        ResourceLookup
	authorizer    ResourceAuthorizer
}

func (s *Schema) scope(opts *RequestOptions) *schemaScope {
	ret := &schemaScope{
		schema:        s,
		attributes:    s.attributes,
		relationships: s.relationships,
		idParam:       s.idParam,
		lookup:        s.lookup,
		authorizer:    s.authorizer,
	}
	if opts == nil {
		return ret
	}
	if opts.Attributes != nil {
		ret.attributes = nil
		for _, attr := range s.attributes {
			if containsString(opts.Attributes, attr.name) {
				ret.attributes = append(ret.attributes, attr)
			}
		}
	}
	if opts.Relationships != nil {
		ret.relationships = nil
		for _, rel := range s.relationships {
			if containsString(opts.Relationships, rel.name) {
				ret.relationships = append(ret.relationships, rel)
			}
		}
	}
	if opts.IDParam != "" {
		ret.idParam = opts.IDParam
	}
	if opts.Lookup != nil {
		ret.lookup = opts.Lookup
	}
	if opts.Authorizer != nil {
		ret.authorizer = opts.Authorizer
	}
	return ret
}

func (s *schemaScope) attributeByKey(key string) (*Attribute, bool) {
	for _, attr := range s.attributes {
		if attr.as == key {
			return attr, true
		}
	}
	return nil, false
}

func (s *schemaScope) relationshipByName(name string) (*Relationship, bool) {
	for _, rel := range s.relationships {
		if rel.name == name {
			return rel, true
		}
	}
	return nil, false
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// SchemaRef is a once-initialized reference to a schema, allowing mutually-referencing schemas to
// be declared in any order.
type SchemaRef struct {
	once    sync.Once
	resolve func() *Schema
	schema  *Schema
}

// StaticSchemaRef references an already-constructed schema.
func StaticSchemaRef(schema *Schema) *SchemaRef {
	return &SchemaRef{schema: schema}
}

// LazySchemaRef defers resolution until the schema is first needed. The given function must be
// ready to run by the time any document referencing the schema is processed.
func LazySchemaRef(resolve func() *Schema) *SchemaRef {
	return &SchemaRef{resolve: resolve}
}

func (r *SchemaRef) Schema() *Schema {
	r.once.Do(func() {
		if r.schema == nil && r.resolve != nil {
			r.schema = r.resolve()
		}
	})
	return r.schema
}
