package jsonapifu

import (
	"context"
	"fmt"

	"github.com/ccbrown/jsonapi-fu/types"
)

// resolveRelationships turns the pre-parsed relationship linkages into wire params by looking up
// the referenced resources. Every missing or unauthorized reference across every relationship is
// reported in one pass.
func resolveRelationships(ctx context.Context, pre *preparsed, scope *schemaScope) (map[string]any, *Error) {
	params := pre.params
	var payloads []types.Error

	for _, linkage := range pre.toOne {
		rel := linkage.rel
		if linkage.id == nil {
			params[rel.ParamName()] = nil
			continue
		}
		target := rel.schema()
		resource, err := target.lookup.FindOne(ctx, target.idParam, *linkage.id)
		if err != nil {
			return nil, lookupError(fmt.Sprintf("resolving the '%s' relationship", rel.name), err)
		}
		if resource == nil {
			payloads = append(payloads, newPayload(
				CodeMissingRelationship,
				fmt.Sprintf("Unable to find '%s' with matching id: %q", rel.resourceType(), *linkage.id),
				"/data/relationships/"+rel.name+"/data",
			))
			continue
		}
		if !target.authorizer(resource) {
			payloads = append(payloads, newPayload(
				CodeUnauthorizedResource,
				fmt.Sprintf("Unable to access '%s' with matching id: %q", rel.resourceType(), *linkage.id),
				"/data/relationships/"+rel.name+"/id",
			))
			continue
		}
		params[rel.ParamName()] = resource.IDValue("id")
	}

	for _, linkage := range pre.toMany {
		rel := linkage.rel
		if len(linkage.ids) == 0 {
			params[rel.ParamName()] = []any{}
			continue
		}
		target := rel.schema()
		collection, err := target.lookup.FindMany(ctx, target.idParam, linkage.ids)
		if err != nil {
			return nil, lookupError(fmt.Sprintf("resolving the '%s' relationship", rel.name), err)
		}

		found := make(map[string]Resource, len(collection))
		for _, resource := range collection {
			found[formatIDValue(resource.IDValue(target.idParam))] = resource
		}

		missing := false
		for i, id := range linkage.ids {
			if _, ok := found[id]; !ok {
				missing = true
				payloads = append(payloads, newPayload(
					CodeMissingRelationship,
					fmt.Sprintf("Unable to find '%s' with matching id: %q", rel.resourceType(), id),
					fmt.Sprintf("/data/relationships/%s/data/%d/id", rel.name, i),
				))
			}
		}
		if missing {
			continue
		}

		authorized := true
		values := make([]any, 0, len(linkage.ids))
		for i, id := range linkage.ids {
			resource := found[id]
			if !target.authorizer(resource) {
				authorized = false
				payloads = append(payloads, newPayload(
					CodeUnauthorizedResource,
					fmt.Sprintf("Unable to access '%s' with matching id: %q", rel.resourceType(), id),
					fmt.Sprintf("/data/relationships/%s/data/%d", rel.name, i),
				))
				continue
			}
			values = append(values, resource.IDValue("id"))
		}
		if authorized {
			params[rel.ParamName()] = values
		}
	}

	if err := aggregateError("unable to resolve relationships", payloads); err != nil {
		return nil, err
	}
	return params, nil
}

// FindResource looks up the single resource a JSON:API document identifies. A null data member
// yields a nil resource with no error.
func FindResource(ctx context.Context, document any, schema *Schema, opts *RequestOptions) (Resource, error) {
	scope := schema.scope(opts)

	doc, err := sanitizeOrFail(document)
	if err != nil {
		return nil, logFailure(schema.logger, "find_resource", err)
	}

	data, ok := doc["data"]
	if !ok {
		return nil, logFailure(schema.logger, "find_resource", newError(
			"document has no data member",
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected data to be a resource identifier or null", "/data"),
		))
	}
	if data == nil {
		// The null resource.
		return nil, nil
	}
	identifier, ok := data.(map[string]any)
	if !ok {
		return nil, logFailure(schema.logger, "find_resource", newError(
			fmt.Sprintf("expected root data element to be an object or null, got %T", data),
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected data to be a resource identifier or null", "/data"),
		))
	}

	if documentType, _ := stringValue(identifier["type"]); documentType != schema.resourceType {
		return nil, logFailure(schema.logger, "find_resource", newError(
			fmt.Sprintf("'%s' did not match the expected resource type: '%s'", documentType, schema.resourceType),
			CodeInvalidDocumentType,
			newPayload(
				CodeInvalidDocumentType,
				fmt.Sprintf("Expected a '%s' resource identifier", schema.resourceType),
				"/data/type",
			),
		))
	}

	id := formatIDValue(identifier["id"])
	resource, lookupErr := scope.lookup.FindOne(ctx, scope.idParam, id)
	if lookupErr != nil {
		return nil, logFailure(schema.logger, "find_resource", lookupError("finding the requested resource", lookupErr))
	}
	if resource == nil {
		return nil, logFailure(schema.logger, "find_resource", newError(
			fmt.Sprintf("unable to find '%s' by '%s': '%s'", schema.resourceType, scope.idParam, id),
			CodeMissingResource,
			newPayload(
				CodeMissingResource,
				fmt.Sprintf("Unable to find '%s' with matching id: %q", schema.resourceType, id),
				"/data",
			),
		))
	}
	if !scope.authorizer(resource) {
		return nil, logFailure(schema.logger, "find_resource", newError(
			fmt.Sprintf("resource authorizer for '%s' returned false", schema.resourceType),
			CodeUnauthorizedResource,
			newPayload(
				CodeUnauthorizedResource,
				fmt.Sprintf("Unable to access '%s' with matching id: %q", schema.resourceType, id),
				"/data",
			),
		))
	}
	return resource, nil
}

// FindCollection looks up every resource a JSON:API resource identifier array references. The
// check stages run strictly in order: every type mismatch is reported before any lookup happens,
// every missing id before any authorization check.
func FindCollection(ctx context.Context, document any, schema *Schema, opts *RequestOptions) ([]Resource, error) {
	scope := schema.scope(opts)

	doc, err := sanitizeOrFail(document)
	if err != nil {
		return nil, logFailure(schema.logger, "find_collection", err)
	}

	data, ok := doc["data"]
	if !ok {
		return nil, logFailure(schema.logger, "find_collection", newError(
			"document has no data member",
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected data to be an array of resource identifiers", "/data"),
		))
	}
	identifiers, ok := data.([]any)
	if !ok {
		return nil, logFailure(schema.logger, "find_collection", newError(
			fmt.Sprintf("expected root data element to be an array, got %T", data),
			CodeInvalidDocument,
			newPayload(CodeInvalidDocument, "Expected data to be an array of resource identifiers", "/data"),
		))
	}

	// No point running any checks for an empty collection.
	if len(identifiers) == 0 {
		return []Resource{}, nil
	}

	var typePayloads []types.Error
	ids := make([]string, len(identifiers))
	for i, item := range identifiers {
		identifier, _ := item.(map[string]any)
		if identifierType, _ := stringValue(identifier["type"]); identifierType != schema.resourceType {
			typePayloads = append(typePayloads, newPayload(
				CodeInvalidDocumentType,
				fmt.Sprintf("Expected a '%s' resource identifier", schema.resourceType),
				fmt.Sprintf("/data/%d/type", i),
			))
			continue
		}
		ids[i] = formatIDValue(identifier["id"])
	}
	if err := aggregateError("document contains mismatched resource types", typePayloads); err != nil {
		return nil, logFailure(schema.logger, "find_collection", err)
	}

	collection, lookupErr := scope.lookup.FindMany(ctx, scope.idParam, ids)
	if lookupErr != nil {
		return nil, logFailure(schema.logger, "find_collection", lookupError("finding the requested collection", lookupErr))
	}
	found := make(map[string]Resource, len(collection))
	for _, resource := range collection {
		found[formatIDValue(resource.IDValue(scope.idParam))] = resource
	}

	var missingPayloads []types.Error
	for i, id := range ids {
		if _, ok := found[id]; !ok {
			missingPayloads = append(missingPayloads, newPayload(
				CodeMissingResource,
				fmt.Sprintf("Unable to find '%s' with matching id: %q", schema.resourceType, id),
				fmt.Sprintf("/data/%d/id", i),
			))
		}
	}
	if err := aggregateError("unable to find all requested resources", missingPayloads); err != nil {
		return nil, logFailure(schema.logger, "find_collection", err)
	}

	var unauthorizedPayloads []types.Error
	ret := make([]Resource, 0, len(ids))
	for i, id := range ids {
		resource := found[id]
		if !scope.authorizer(resource) {
			unauthorizedPayloads = append(unauthorizedPayloads, newPayload(
				CodeUnauthorizedResource,
				fmt.Sprintf("Unable to access '%s' with matching id: %q", schema.resourceType, id),
				fmt.Sprintf("/data/%d", i),
			))
			continue
		}
		ret = append(ret, resource)
	}
	if err := aggregateError("unable to access all requested resources", unauthorizedPayloads); err != nil {
		return nil, logFailure(schema.logger, "find_collection", err)
	}
	return ret, nil
}
