package jsonapifu

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/ccbrown/jsonapi-fu/types"
)

// RenderError writes err to w as a JSON:API errors document. *Error values render their payloads
// with their derived HTTP status; anything else renders as a bare 500 error object.
func RenderError(w http.ResponseWriter, err error) {
	var doc types.ErrorsDocument
	status := http.StatusInternalServerError

	if apiErr, ok := err.(*Error); ok {
		status = apiErr.HTTPStatus()
		doc.Errors = apiErr.Payloads
	} else {
		doc.Errors = []types.Error{{
			Status: strconv.Itoa(status),
			Title:  http.StatusText(status),
		}}
	}
	doc.JSONAPI = &types.JSONAPI{Version: "1.1"}

	body, marshalErr := jsoniter.Marshal(doc)
	if marshalErr != nil {
		status = http.StatusInternalServerError
		body, _ = jsoniter.Marshal(types.ErrorsDocument{
			Errors: []types.Error{{
				Status: strconv.Itoa(status),
				Title:  http.StatusText(status),
			}},
		})
	}

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

// ParseErrorHandler wraps next, replying with an invalid_document errors document whenever a
// JSON request body is not parseable JSON. Downstream handlers can then assume syntactically
// valid bodies.
func ParseErrorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.ContentLength == 0 || !hasJSONContentType(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil || !jsoniter.Valid(body) {
			RenderError(w, newError(
				"request body is not valid JSON",
				CodeInvalidDocument,
				newPayload(CodeInvalidDocument, "Request body is not a JSON:API document", ""),
			))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func hasJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/vnd.api+json" || mediaType == "application/json"
}
