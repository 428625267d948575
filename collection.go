package jsonapifu

import (
	"context"
	"fmt"

	"github.com/ccbrown/jsonapi-fu/types"
)

// CollectionManager updates a to-many relationship from a JSON:API resource identifier document.
// Assign the hooks for the mutations the relationship supports; unset hooks report
// relationship_method_not_supported.
type CollectionManager struct {
	// Schema describes the related resources.
	Schema *Schema

	// Options narrows the schema for the current request.
	Options *RequestOptions

	Insert     func(ctx context.Context, parent Resource, collection []Resource) error
	Remove     func(ctx context.Context, parent Resource, collection []Resource) error
	ReplaceAll func(ctx context.Context, parent Resource, collection []Resource) error
}

// LoadCollection resolves the document into related resources without mutating anything.
func (m *CollectionManager) LoadCollection(ctx context.Context, document any) ([]Resource, error) {
	return FindCollection(ctx, document, m.Schema, m.Options)
}

// InsertRecords adds the document's resources to the parent's relationship.
func (m *CollectionManager) InsertRecords(ctx context.Context, parent Resource, document any) error {
	return m.apply(ctx, parent, document, "insert", m.Insert)
}

// RemoveRecords removes the document's resources from the parent's relationship.
func (m *CollectionManager) RemoveRecords(ctx context.Context, parent Resource, document any) error {
	return m.apply(ctx, parent, document, "remove", m.Remove)
}

// ReplaceAllRecords replaces the parent's relationship with the document's resources.
func (m *CollectionManager) ReplaceAllRecords(ctx context.Context, parent Resource, document any) error {
	return m.apply(ctx, parent, document, "replace", m.ReplaceAll)
}

func (m *CollectionManager) apply(ctx context.Context, parent Resource, document any, action string, hook func(context.Context, Resource, []Resource) error) error {
	if hook == nil {
		return newError(
			fmt.Sprintf("the '%s' relationship does not support %s", m.Schema.resourceType, action),
			CodeRelationshipMethodNotSupported,
			newPayload(
				CodeRelationshipMethodNotSupported,
				fmt.Sprintf("The '%s' relationship does not support %s requests", m.Schema.resourceType, action),
				"",
			),
		)
	}
	collection, err := m.LoadCollection(ctx, document)
	if err != nil {
		return err
	}
	return hook(ctx, parent, collection)
}

// NewInvalidResourcesError reports collection members that could not be updated, one payload per
// index. The detail function may be nil for a generic message.
func NewInvalidResourcesError(resourceType string, indexes []int, detail func(index int) string) *Error {
	payloads := make([]types.Error, 0, len(indexes))
	for _, index := range indexes {
		message := ""
		if detail != nil {
			message = detail(index)
		}
		if message == "" {
			message = fmt.Sprintf("Unable to update the '%s' resource", resourceType)
		}
		payloads = append(payloads, newPayload(
			CodeInvalidResource,
			message,
			fmt.Sprintf("/data/%d/id", index),
		))
	}
	return aggregateError("unable to update relationship due to errors with the collection", payloads)
}
