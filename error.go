package jsonapifu

import (
	"strconv"
	"strings"

	"github.com/ccbrown/jsonapi-fu/types"
)

// Error codes reported by this package. Each code has a default status and title which are applied
// to any payload that doesn't set its own.
const (
	CodeInvalidDocument                  = "invalid_document"
	CodeInvalidDocumentType              = "invalid_document_type"
	CodeInvalidDocumentIdentifier        = "invalid_document_identifier"
	CodeIllegalClientGeneratedIdentifier = "illegal_client_generated_identifier"
	CodeInvalidClientGeneratedIdentifier = "invalid_client_generated_identifier"
	CodeInvalidAttribute                 = "invalid_attribute"
	CodeUnknownAttribute                 = "unknown_attribute"
	CodeUnauthorizedAttribute            = "unauthorized_attribute"
	CodeInvalidRelationship              = "invalid_relationship"
	CodeInvalidRelationshipType          = "invalid_relationship_type"
	CodeMissingRelationship              = "missing_relationship"
	CodeUnknownRelationship              = "unknown_relationship"
	CodeUnauthorizedRelationship         = "unauthorized_relationship"
	CodeMissingResource                  = "missing_resource"
	CodeUnauthorizedResource             = "unauthorized_resource"
	CodeInvalidResource                  = "invalid_resource"
	CodeRelationshipMethodNotSupported   = "relationship_method_not_supported"
	CodeInternalError                    = "internal_error"
)

var errorDefaults = map[string]struct {
	Status string
	Title  string
}{
	CodeInvalidDocument:                  {"400", "Request json_api document is invalid"},
	CodeInvalidDocumentType:              {"409", "Request json_api type does not match endpoint"},
	CodeInvalidDocumentIdentifier:        {"409", "Request json_api id does not match endpoint"},
	CodeIllegalClientGeneratedIdentifier: {"403", "Request json_api attempted to set an unsupported client-generated id"},
	CodeInvalidClientGeneratedIdentifier: {"409", "Request json_api client-generated id has already been used"},
	CodeInvalidAttribute:                 {"400", "Request json_api attribute can not be parsed"},
	CodeUnknownAttribute:                 {"422", "Request json_api attribute is not recognised by the endpoint"},
	CodeUnauthorizedAttribute:            {"403", "Request json_api attribute can not be updated by the endpoint"},
	CodeInvalidRelationship:              {"400", "Request json_api relationship can not be parsed"},
	CodeInvalidRelationshipType:          {"409", "Request json_api relationship type does not match expected resource"},
	CodeMissingRelationship:              {"404", "Unable to find the requested relationship"},
	CodeUnknownRelationship:              {"422", "Request json_api relationship is not recognised by the endpoint"},
	CodeUnauthorizedRelationship:         {"403", "Request json_api relationship can not be updated by the endpoint"},
	CodeMissingResource:                  {"404", "Unable to find the requested resource"},
	CodeUnauthorizedResource:             {"403", "Unable to access the requested resource"},
	CodeInvalidResource:                  {"422", "Unable to update the requested resource"},
	CodeRelationshipMethodNotSupported:   {"403", "The requested relationship action is not supported"},
	CodeInternalError:                    {"500", "Internal server error"},
}

// Error is a validation failure carrying one or more JSON:API error objects. The Message is a
// developer-facing description and is never rendered to clients; only the payloads are.
type Error struct {
	Message  string
	Payloads []types.Error
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus derives the status code for rendering this error: the shared status if all payloads
// agree, 500 if any payload is a server error, and 400 otherwise.
func (e *Error) HTTPStatus() int {
	statuses := make([]string, 0, 1)
	for _, payload := range e.Payloads {
		found := false
		for _, status := range statuses {
			if status == payload.Status {
				found = true
				break
			}
		}
		if !found {
			statuses = append(statuses, payload.Status)
		}
	}
	if len(statuses) == 1 {
		if n, err := strconv.Atoi(statuses[0]); err == nil {
			return n
		}
		return 400
	}
	for _, status := range statuses {
		if strings.HasPrefix(status, "5") {
			return 500
		}
	}
	return 400
}

// newError builds an *Error whose payloads all share one code, applying the code's default status
// and title to each payload.
func newError(message, code string, payloads ...types.Error) *Error {
	filled := make([]types.Error, len(payloads))
	for i, payload := range payloads {
		filled[i] = fillPayloadDefaults(code, payload)
	}
	return &Error{Message: message, Payloads: filled}
}

// aggregateError builds an *Error from payloads that already carry their codes, typically built
// with newPayload. Returns nil if there are no payloads.
func aggregateError(message string, payloads []types.Error) *Error {
	if len(payloads) == 0 {
		return nil
	}
	return &Error{Message: message, Payloads: payloads}
}

// newPayload builds one error object with the defaults for the given code and an optional JSON
// Pointer.
func newPayload(code, detail, pointer string) types.Error {
	payload := types.Error{Detail: detail}
	if pointer != "" {
		payload.Source = &types.ErrorSource{Pointer: pointer}
	}
	return fillPayloadDefaults(code, payload)
}

func fillPayloadDefaults(code string, payload types.Error) types.Error {
	if payload.Code == "" {
		payload.Code = code
	}
	if defaults, ok := errorDefaults[payload.Code]; ok {
		if payload.Status == "" {
			payload.Status = defaults.Status
		}
		if payload.Title == "" {
			payload.Title = defaults.Title
		}
	}
	return payload
}
