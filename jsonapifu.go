// Package jsonapifu implements the request side of the JSON:API specification: it turns inbound
// JSON:API documents into validated, type-coerced parameter maps suitable for creating or updating
// domain resources, and resolves the resources a document references.
//
// Schemas are declared once with NewSchema and are safe for concurrent use. Each request runs
// through a fixed sequence of passes: structural pre-parsing, schema validation, then resource
// resolution. A failing pass reports every violation it detects as JSON:API error objects with
// RFC 6901 pointers before later passes run.
package jsonapifu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ccbrown/jsonapi-fu/types"
)

// Documents are decoded with UseNumber so large integer and decimal attribute values survive
// without passing through float64.
var documentJSON = jsoniter.Config{UseNumber: true}.Froze()

// Deserialize runs a JSON:API document through structural pre-parsing, schema validation, and
// relationship resolution, returning a sanitized parameter map keyed by wire param names ("title",
// "author_id", "comment_ids", ...).
//
// For updates, `resource` is the resource being updated and the document's id must match it. For
// creates, `resource` should be nil and client-generated ids are subject to the schema's policy.
//
// On failure the returned error is an *Error aggregating every violation the failing pass
// detected.
func Deserialize(ctx context.Context, document any, schema *Schema, resource Resource, opts *RequestOptions) (map[string]any, error) {
	scope := schema.scope(opts)

	doc, err := sanitizeOrFail(document)
	if err != nil {
		return nil, logFailure(schema.logger, "deserialize", err)
	}

	pre, err := preDeserialize(doc, scope)
	if err != nil {
		return nil, logFailure(schema.logger, "deserialize", err)
	}

	if err := validateSchema(ctx, doc, scope, resource); err != nil {
		return nil, logFailure(schema.logger, "deserialize", err)
	}

	params, err := resolveRelationships(ctx, pre, scope)
	if err != nil {
		return nil, logFailure(schema.logger, "deserialize", err)
	}
	return params, nil
}

// SanitizeDocument normalizes a raw document into a plain nested map. Raw JSON ([]byte, string, or
// json.RawMessage) is decoded; maps are deep-copied so that nothing downstream can mutate the
// caller's value. Numeric values are represented as json.Number.
func SanitizeDocument(raw any) (map[string]any, error) {
	switch raw := raw.(type) {
	case []byte:
		return decodeDocument(raw)
	case string:
		return decodeDocument([]byte(raw))
	case map[string]any:
		return deepCopyMap(raw), nil
	case nil:
		return nil, fmt.Errorf("document is missing")
	default:
		return nil, fmt.Errorf("document should be raw JSON or a map, got %T", raw)
	}
}

func sanitizeOrFail(raw any) (map[string]any, *Error) {
	doc, err := SanitizeDocument(raw)
	if err != nil {
		return nil, newError(
			fmt.Sprintf("unable to parse document: %v", err),
			CodeInvalidDocument,
			types.Error{Detail: "Request document is not a JSON:API document"},
		)
	}
	return doc, nil
}

func decodeDocument(buf []byte) (map[string]any, error) {
	var doc map[string]any
	if err := documentJSON.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func deepCopyMap(m map[string]any) map[string]any {
	ret := make(map[string]any, len(m))
	for k, v := range m {
		ret[k] = deepCopyValue(v)
	}
	return ret
}

func deepCopyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return deepCopyMap(v)
	case []any:
		ret := make([]any, len(v))
		for i, item := range v {
			ret[i] = deepCopyValue(item)
		}
		return ret
	default:
		return v
	}
}

func isGloballyAllowedCharacter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isInternallyAllowedCharacter(r rune) bool {
	return isGloballyAllowedCharacter(r) || r == '-' || r == '_'
}

// https://jsonapi.org/format/#document-member-names
func ValidateMemberName(name string) error {
	if len(name) < 1 {
		return fmt.Errorf("member names must have at least one character")
	} else if strings.IndexFunc(name, func(r rune) bool {
		return !isInternallyAllowedCharacter(r)
	}) >= 0 {
		return fmt.Errorf("member names may only contain numbers, letters, hyphens, and underscores")
	} else if !isGloballyAllowedCharacter(rune(name[0])) || !isGloballyAllowedCharacter(rune(name[len(name)-1])) {
		return fmt.Errorf("member names must begin and end with a number or letter")
	}
	return nil
}

// formatIDValue normalizes an id to the string form used for comparisons with document-supplied
// ids, which are always strings on the wire.
func formatIDValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func logFailure(logger logrus.FieldLogger, operation string, err *Error) *Error {
	logger.WithFields(logrus.Fields{
		"operation": operation,
		"status":    err.HTTPStatus(),
	}).Debug(err.Message)
	return err
}
