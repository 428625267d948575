package jsonapifu

import (
	"context"
	"fmt"
	"sort"

	"github.com/ccbrown/jsonapi-fu/types"
)

// validateSchema cross-checks the document against the request-scoped schema and the resource
// being created or updated. Checks run in a fixed order; the first failing check reports every
// violation it detected.
func validateSchema(ctx context.Context, doc map[string]any, scope *schemaScope, resource Resource) *Error {
	dataMap, _ := doc["data"].(map[string]any)

	if err := checkDocumentType(dataMap, scope); err != nil {
		return err
	}
	if err := checkDocumentID(ctx, dataMap, scope, resource); err != nil {
		return err
	}
	if err := checkAttributeNames(dataMap, scope); err != nil {
		return err
	}
	if err := checkRelationshipNames(dataMap, scope); err != nil {
		return err
	}
	return checkRelationshipTypes(dataMap, scope)
}

func checkDocumentType(dataMap map[string]any, scope *schemaScope) *Error {
	documentType, _ := stringValue(dataMap["type"])
	if documentType == scope.schema.resourceType {
		return nil
	}
	return newError(
		fmt.Sprintf("'%s' does not match the expected resource: %s", documentType, scope.schema.resourceType),
		CodeInvalidDocumentType,
		newPayload(
			CodeInvalidDocumentType,
			fmt.Sprintf("Expected a '%s' resource", scope.schema.resourceType),
			"/data/type",
		),
	)
}

func checkDocumentID(ctx context.Context, dataMap map[string]any, scope *schemaScope, resource Resource) *Error {
	documentID, documentIDPresent := dataMap["id"]

	if resource != nil {
		// Ensure a correct update document is being sent.
		id, ok := stringValue(documentID)
		if !ok {
			return invalidDocumentIDError(documentID)
		}
		resourceID := formatIDValue(resource.IDValue(scope.idParam))
		if id != resourceID {
			return newError(
				fmt.Sprintf("document id '%s' does not match the '%s' resource id: '%s'", id, scope.schema.resourceType, resourceID),
				CodeInvalidDocumentIdentifier,
				newPayload(
					CodeInvalidDocumentIdentifier,
					fmt.Sprintf("Expected id to match the '%s' resource id: %s", scope.schema.resourceType, resourceID),
					"/data/id",
				),
			)
		}
		return nil
	}

	if !documentIDPresent {
		return nil
	}

	// Ensure a correct create document is being sent.
	id, ok := stringValue(documentID)
	if !ok {
		return invalidDocumentIDError(documentID)
	}
	if _, declared := scope.attributeByKey("id"); !declared {
		return newError(
			fmt.Sprintf("id parameter for '%s' cannot be client-generated: it is not a declared attribute", scope.schema.resourceType),
			CodeIllegalClientGeneratedIdentifier,
			newPayload(
				CodeIllegalClientGeneratedIdentifier,
				fmt.Sprintf("The '%s' endpoint does not accept client-generated ids", scope.schema.resourceType),
				"/data/id",
			),
		)
	}
	existing, err := scope.lookup.FindOne(ctx, scope.idParam, id)
	if err != nil {
		return lookupError("checking for an existing client-generated id", err)
	}
	if existing != nil {
		return newError(
			fmt.Sprintf("an existing '%s' resource already has id: '%s'", scope.schema.resourceType, id),
			CodeInvalidClientGeneratedIdentifier,
			newPayload(
				CodeInvalidClientGeneratedIdentifier,
				fmt.Sprintf("The id '%s' has already been used by another '%s' resource", id, scope.schema.resourceType),
				"/data/id",
			),
		)
	}
	return nil
}

func invalidDocumentIDError(documentID any) *Error {
	return newError(
		fmt.Sprintf("document id is not a string: %T", documentID),
		CodeInvalidDocumentIdentifier,
		newPayload(CodeInvalidDocumentIdentifier, "Expected id to be a string", "/data/id"),
	)
}

func checkAttributeNames(dataMap map[string]any, scope *schemaScope) *Error {
	attributes, _ := dataMap["attributes"].(map[string]any)

	var unknown []string
	var forbidden []string
	for key := range attributes {
		if _, ok := scope.attributeByKey(key); ok {
			continue
		}
		if _, declared := scope.schema.attributesByKey[key]; declared {
			forbidden = append(forbidden, key)
		} else {
			unknown = append(unknown, key)
		}
	}

	if len(forbidden) > 0 {
		payloads := make([]types.Error, 0, len(forbidden))
		for _, key := range sortedKeys(forbidden) {
			payloads = append(payloads, newPayload(
				CodeUnauthorizedAttribute,
				fmt.Sprintf("The '%s' attribute can not be updated by this endpoint", key),
				"/data/attributes/"+key,
			))
		}
		return aggregateError("forbidden attributes were provided to endpoint", payloads)
	}
	if len(unknown) > 0 {
		payloads := make([]types.Error, 0, len(unknown))
		for _, key := range sortedKeys(unknown) {
			payloads = append(payloads, newPayload(
				CodeUnknownAttribute,
				fmt.Sprintf("The '%s' attribute is not recognised by this endpoint", key),
				"/data/attributes/"+key,
			))
		}
		return aggregateError("unknown attributes were provided to endpoint", payloads)
	}
	return nil
}

func checkRelationshipNames(dataMap map[string]any, scope *schemaScope) *Error {
	relationships, _ := dataMap["relationships"].(map[string]any)

	var unknown []string
	var forbidden []string
	for key := range relationships {
		if _, ok := scope.relationshipByName(key); ok {
			continue
		}
		if _, declared := scope.schema.relationshipsByName[key]; declared {
			forbidden = append(forbidden, key)
		} else {
			unknown = append(unknown, key)
		}
	}

	if len(forbidden) > 0 {
		payloads := make([]types.Error, 0, len(forbidden))
		for _, key := range sortedKeys(forbidden) {
			payloads = append(payloads, newPayload(
				CodeUnauthorizedRelationship,
				fmt.Sprintf("The '%s' relationship can not be updated by this endpoint", key),
				"/data/relationships/"+key,
			))
		}
		return aggregateError("forbidden relationships were provided to endpoint", payloads)
	}
	if len(unknown) > 0 {
		payloads := make([]types.Error, 0, len(unknown))
		for _, key := range sortedKeys(unknown) {
			payloads = append(payloads, newPayload(
				CodeUnknownRelationship,
				fmt.Sprintf("The '%s' relationship is not recognised by this endpoint", key),
				"/data/relationships/"+key,
			))
		}
		return aggregateError("unknown relationships were provided to endpoint", payloads)
	}
	return nil
}

// checkRelationshipTypes verifies each supplied resource identifier's type against the declared
// relationship. Shapes that failed the structural pass never get this far, so anything that isn't
// linkage-shaped is skipped here.
func checkRelationshipTypes(dataMap map[string]any, scope *schemaScope) *Error {
	relationships, _ := dataMap["relationships"].(map[string]any)

	var payloads []types.Error
	for _, rel := range scope.relationships {
		value, ok := relationships[rel.name]
		if !ok {
			continue
		}
		relMap, ok := value.(map[string]any)
		if !ok {
			continue
		}
		linkage := relMap["data"]
		if linkage == nil {
			continue
		}
		if rel.hasMany {
			identifiers, ok := linkage.([]any)
			if !ok {
				continue
			}
			for i, item := range identifiers {
				identifier, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if identifierType, _ := stringValue(identifier["type"]); identifierType != rel.resourceType() {
					payloads = append(payloads, newPayload(
						CodeInvalidRelationshipType,
						fmt.Sprintf("Expected '%s' relationship to be an array of '%s' resource identifiers", rel.name, rel.resourceType()),
						fmt.Sprintf("/data/relationships/%s/data/%d/type", rel.name, i),
					))
				}
			}
		} else {
			identifier, ok := linkage.(map[string]any)
			if !ok {
				continue
			}
			if identifierType, _ := stringValue(identifier["type"]); identifierType != rel.resourceType() {
				payloads = append(payloads, newPayload(
					CodeInvalidRelationshipType,
					fmt.Sprintf("Expected '%s' relationship to be null or a '%s' resource identifier", rel.name, rel.resourceType()),
					"/data/relationships/"+rel.name+"/data/type",
				))
			}
		}
	}
	return aggregateError("relationship types do not match the expected resources", payloads)
}

func lookupError(during string, err error) *Error {
	return newError(
		fmt.Sprintf("resource lookup failed while %s: %v", during, err),
		CodeInternalError,
		newPayload(CodeInternalError, "", ""),
	)
}

func sortedKeys(keys []string) []string {
	// Map iteration order is random; sorted payloads keep error output deterministic.
	ret := append([]string(nil), keys...)
	sort.Strings(ret)
	return ret
}
