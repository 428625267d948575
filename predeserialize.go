package jsonapifu

import (
	"fmt"

	"github.com/ccbrown/jsonapi-fu/types"
)

// preparsed is the outcome of the structural pass: coerced attribute params plus the relationship
// linkages awaiting resolution.
type preparsed struct {
	params map[string]any
	toOne  []toOneLinkage
	toMany []toManyLinkage
}

type toOneLinkage struct {
	rel *Relationship
	id  *string
}

type toManyLinkage struct {
	rel *Relationship
	ids []string
}

// preDeserialize walks the raw document, checking its shape and coercing the declared attribute
// values. It aggregates every structural and coercion failure it finds. Undeclared keys are passed
// over here; rejecting them is the schema validation pass's job.
func preDeserialize(doc map[string]any, scope *schemaScope) (*preparsed, *Error) {
	data, ok := doc["data"]
	if !ok {
		return nil, newError(
			"document has no data member",
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected document to contain a data object", "/data"),
		)
	}
	dataMap, ok := data.(map[string]any)
	if !ok {
		return nil, newError(
			fmt.Sprintf("expected root data element to be a resource object, got %T", data),
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected data to be a resource object", "/data"),
		)
	}

	ret := &preparsed{params: map[string]any{}}
	var payloads []types.Error

	payloads = append(payloads, preDeserializeAttributes(dataMap, scope, ret)...)
	payloads = append(payloads, preDeserializeRelationships(dataMap, scope, ret)...)

	if err := aggregateError("document failed structural checks", payloads); err != nil {
		return nil, err
	}
	return ret, nil
}

func preDeserializeAttributes(dataMap map[string]any, scope *schemaScope, ret *preparsed) []types.Error {
	raw, ok := dataMap["attributes"]
	if !ok || raw == nil {
		return nil
	}
	attributes, ok := raw.(map[string]any)
	if !ok {
		return []types.Error{
			newPayload(CodeInvalidDocument, "Expected attributes to be an object", "/data/attributes"),
		}
	}

	var payloads []types.Error
	for _, attr := range scope.attributes {
		value, ok := attributes[attr.as]
		if !ok {
			continue
		}
		decoded, payload, ok := attr.Decode(value)
		if !ok {
			payloads = append(payloads, payload)
			continue
		}
		ret.params[attr.ParamName()] = decoded
	}
	return payloads
}

func preDeserializeRelationships(dataMap map[string]any, scope *schemaScope, ret *preparsed) []types.Error {
	raw, ok := dataMap["relationships"]
	if !ok || raw == nil {
		return nil
	}
	relationships, ok := raw.(map[string]any)
	if !ok {
		return []types.Error{
			newPayload(CodeInvalidDocument, "Expected relationships to be an object", "/data/relationships"),
		}
	}

	var payloads []types.Error
	for _, rel := range scope.relationships {
		value, ok := relationships[rel.name]
		if !ok {
			continue
		}
		relMap, ok := value.(map[string]any)
		if !ok {
			payloads = append(payloads, newPayload(
				CodeInvalidDocument,
				"Expected relationship to be an object with a data member",
				"/data/relationships/"+rel.name,
			))
			continue
		}
		linkage, ok := relMap["data"]
		if !ok {
			payloads = append(payloads, newPayload(
				CodeInvalidDocument,
				"Expected relationship to be an object with a data member",
				"/data/relationships/"+rel.name,
			))
			continue
		}
		if rel.hasMany {
			payloads = append(payloads, preDeserializeToMany(rel, linkage, ret)...)
		} else {
			payloads = append(payloads, preDeserializeToOne(rel, linkage, ret)...)
		}
	}
	return payloads
}

func preDeserializeToOne(rel *Relationship, linkage any, ret *preparsed) []types.Error {
	if linkage == nil {
		ret.toOne = append(ret.toOne, toOneLinkage{rel: rel})
		return nil
	}
	identifier, ok := linkage.(map[string]any)
	if !ok {
		return []types.Error{newPayload(
			CodeInvalidRelationship,
			fmt.Sprintf("Expected '%s' relationship to contain a single '%s' resource identifier object", rel.name, rel.resourceType()),
			"/data/relationships/"+rel.name+"/data",
		)}
	}
	id := formatIDValue(identifier["id"])
	if id == "" {
		return []types.Error{newPayload(
			CodeInvalidRelationship,
			fmt.Sprintf("Expected '%s' resource identifier to contain an id", rel.name),
			"/data/relationships/"+rel.name+"/data",
		)}
	}
	ret.toOne = append(ret.toOne, toOneLinkage{rel: rel, id: &id})
	return nil
}

func preDeserializeToMany(rel *Relationship, linkage any, ret *preparsed) []types.Error {
	if linkage == nil {
		ret.toMany = append(ret.toMany, toManyLinkage{rel: rel, ids: []string{}})
		return nil
	}
	identifiers, ok := linkage.([]any)
	if !ok {
		return []types.Error{newPayload(
			CodeInvalidRelationship,
			fmt.Sprintf("Expected '%s' relationship to contain an array of '%s' resource identifiers", rel.name, rel.resourceType()),
			"/data/relationships/"+rel.name,
		)}
	}

	var payloads []types.Error
	ids := make([]string, 0, len(identifiers))
	for i, item := range identifiers {
		identifier, ok := item.(map[string]any)
		if !ok {
			payloads = append(payloads, newPayload(
				CodeInvalidRelationship,
				fmt.Sprintf("Expected '%s' relationship item to be a '%s' resource identifier object", rel.name, rel.resourceType()),
				fmt.Sprintf("/data/relationships/%s/data/%d", rel.name, i),
			))
			continue
		}
		id := formatIDValue(identifier["id"])
		if id == "" {
			payloads = append(payloads, newPayload(
				CodeInvalidRelationship,
				fmt.Sprintf("Expected '%s' resource identifier to contain an id", rel.name),
				fmt.Sprintf("/data/relationships/%s/data/%d", rel.name, i),
			))
			continue
		}
		ids = append(ids, id)
	}
	if len(payloads) > 0 {
		return payloads
	}
	ret.toMany = append(ret.toMany, toManyLinkage{rel: rel, ids: ids})
	return nil
}
