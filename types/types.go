package types

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// Error objects provide additional information about problems encountered while performing an
// operation.
type Error struct {
	// A unique identifier for this particular occurrence of the problem.
	Id string `json:"id,omitempty"`

	// The HTTP status code applicable to this problem, expressed as a string value.
	Status string `json:"status,omitempty"`

	// An application-specific error code, expressed as a string value.
	Code string `json:"code,omitempty"`

	// A short, human-readable summary of the problem that SHOULD NOT change from occurrence to
	// occurrence of the problem, except for purposes of localization.
	Title string `json:"title,omitempty"`

	// A human-readable explanation specific to this occurrence of the problem. Like title, this
	// field’s value can be localized.
	Detail string `json:"detail,omitempty"`

	// An object containing references to the primary source of the error.
	Source *ErrorSource `json:"source,omitempty"`

	// A meta object containing non-standard meta-information about the error.
	Meta map[string]any `json:"meta,omitempty"`
}

// An object containing references to the primary source of the error.
type ErrorSource struct {
	// A JSON Pointer [RFC6901] to the value in the request document that caused the error [e.g.
	// "/data" for a primary data object, or "/data/attributes/title" for a specific attribute].
	Pointer string `json:"pointer,omitempty"`

	// A string indicating which URI query parameter caused the error.
	Parameter string `json:"parameter,omitempty"`
}

// This object defines a document’s “top level” when the document communicates nothing but errors.
type ErrorsDocument struct {
	// An array of error objects.
	Errors []Error `json:"errors"`

	// A meta object containing non-standard meta-information.
	Meta map[string]any `json:"meta,omitempty"`

	// An object describing the server’s implementation.
	JSONAPI *JSONAPI `json:"jsonapi,omitempty"`
}

type JSONAPI struct {
	// A string indicating the highest JSON:API version supported.
	Version string `json:"version,omitempty"`
}

// A resource identifier object identifies an individual resource without its attributes.
type ResourceId struct {
	Type string `json:"type"`

	Id string `json:"id"`
}

// This object defines a request document’s “top level”.
type RequestDocument struct {
	// The document’s “primary data”: a resource object, a resource identifier array, or null.
	Data json.RawMessage `json:"data"`
}

// A resource object as supplied by a client when creating or updating a resource.
type ResourceObject struct {
	Type string `json:"type"`

	Id string `json:"id,omitempty"`

	// An object containing the resource's attribute values, keyed by attribute name.
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`

	// An object containing the resource's relationship linkages, keyed by relationship name.
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// A relationship object supplied by a client. Only the resource linkage is meaningful on the
// request side.
type Relationship struct {
	// Either nil, `ResourceId`, or `[]ResourceId`.
	Data any `json:"data"`
}

func (r *Relationship) UnmarshalJSON(buf []byte) error {
	var tmp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := jsoniter.Unmarshal(buf, &tmp); err != nil {
		return err
	}

	if len(tmp.Data) > 0 {
		if tmp.Data[0] == '[' {
			var data []ResourceId
			if err := jsoniter.Unmarshal(tmp.Data, &data); err != nil {
				return err
			}
			r.Data = data
		} else {
			var data *ResourceId
			if err := jsoniter.Unmarshal(tmp.Data, &data); err != nil {
				return err
			}
			if data != nil {
				r.Data = *data
			}
		}
	}

	return nil
}
