package jsonapifu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blogFixture struct {
	posts    *Schema
	people   *Schema
	comments *Schema

	postLookup    *testLookup
	authorLookup  *testLookup
	commentLookup *testLookup
}

func newBlogFixture(t *testing.T) *blogFixture {
	t.Helper()

	f := &blogFixture{
		postLookup:    &testLookup{resources: []*testResource{{id: 1}, {id: 42}}},
		authorLookup:  &testLookup{resources: []*testResource{{id: 9}}},
		commentLookup: &testLookup{resources: []*testResource{{id: 5}, {id: 12}}},
	}

	f.people = mustNewSchema(t, &SchemaDefinition{
		ResourceType: "people",
		Lookup:       f.authorLookup,
	})
	f.comments = mustNewSchema(t, &SchemaDefinition{
		ResourceType: "comments",
		Lookup:       f.commentLookup,
	})
	f.posts = mustNewSchema(t, &SchemaDefinition{
		ResourceType: "posts",
		Lookup:       f.postLookup,
		Attributes: []AttributeDefinition{
			{Name: "title"},
			{Name: "published_at", Format: DateAttribute},
		},
		Relationships: []RelationshipDefinition{
			{Name: "author", Schema: StaticSchemaRef(f.people)},
			{Name: "comments", Schema: StaticSchemaRef(f.comments), HasMany: true},
		},
	})
	return f
}

func requireError(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*Error)
	require.True(t, ok, "expected a *jsonapifu.Error, got %T", err)
	return apiErr
}

func TestDeserialize(t *testing.T) {
	f := newBlogFixture(t)
	ctx := context.Background()

	params, err := Deserialize(ctx, []byte(`{
		"data": {
			"type": "posts",
			"attributes": {"title": "T", "published_at": "2016-03-12"},
			"relationships": {
				"author": {"data": {"id": "9", "type": "people"}},
				"comments": {"data": [{"id": "5", "type": "comments"}, {"id": "12", "type": "comments"}]}
			}
		}
	}`), f.posts, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"title":        "T",
		"published_at": time.Date(2016, 3, 12, 0, 0, 0, 0, time.UTC),
		"author_id":    9,
		"comment_ids":  []any{5, 12},
	}, params)
}

func TestDeserializeNullToOneRelationship(t *testing.T) {
	f := newBlogFixture(t)

	params, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": null}}
		}
	}`), f.posts, nil, nil)
	require.NoError(t, err)

	value, ok := params["author_id"]
	assert.True(t, ok)
	assert.Nil(t, value)
	assert.Zero(t, f.authorLookup.findOneCalls)
}

func TestDeserializeEmptyToManyRelationship(t *testing.T) {
	f := newBlogFixture(t)

	params, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"comments": {"data": []}}
		}
	}`), f.posts, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{}, params["comment_ids"])
	assert.Zero(t, f.commentLookup.findManyCalls)
}

func TestDeserializeInvalidDocument(t *testing.T) {
	f := newBlogFixture(t)

	for name, tc := range map[string]struct {
		In      string
		Pointer string
	}{
		"MissingData": {
			In:      `{"meta": {}}`,
			Pointer: "/data",
		},
		"NullData": {
			In:      `{"data": null}`,
			Pointer: "/data",
		},
		"ArrayData": {
			In:      `{"data": []}`,
			Pointer: "/data",
		},
		"AttributesNotAnObject": {
			In:      `{"data": {"type": "posts", "attributes": []}}`,
			Pointer: "/data/attributes",
		},
		"RelationshipsNotAnObject": {
			In:      `{"data": {"type": "posts", "relationships": "author"}}`,
			Pointer: "/data/relationships",
		},
		"RelationshipWithoutData": {
			In:      `{"data": {"type": "posts", "relationships": {"author": {"id": "9"}}}}`,
			Pointer: "/data/relationships/author",
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(context.Background(), []byte(tc.In), f.posts, nil, nil)
			apiErr := requireError(t, err)
			require.Len(t, apiErr.Payloads, 1)
			payload := apiErr.Payloads[0]
			assert.Equal(t, "invalid_document", payload.Code)
			assert.Equal(t, "400", payload.Status)
			assert.Equal(t, tc.Pointer, payload.Source.Pointer)
			assert.Equal(t, 400, apiErr.HTTPStatus())
		})
	}
}

func TestDeserializeInvalidAttributesAggregate(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"attributes": {"title": 42, "published_at": "not-a-date"}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 2)
	pointers := []string{apiErr.Payloads[0].Source.Pointer, apiErr.Payloads[1].Source.Pointer}
	assert.ElementsMatch(t, []string{"/data/attributes/title", "/data/attributes/published_at"}, pointers)
	for _, payload := range apiErr.Payloads {
		assert.Equal(t, "invalid_attribute", payload.Code)
		assert.Equal(t, "400", payload.Status)
	}
}

func TestDeserializeUnknownAttribute(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"attributes": {"title": "T", "foo": "bar"}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "unknown_attribute", payload.Code)
	assert.Equal(t, "422", payload.Status)
	assert.Equal(t, "/data/attributes/foo", payload.Source.Pointer)
	assert.Equal(t, 422, apiErr.HTTPStatus())
}

func TestDeserializeForbiddenAttribute(t *testing.T) {
	f := newBlogFixture(t)

	// published_at is declared on the schema but excluded from this request's scope.
	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"attributes": {"title": "T", "published_at": "2016-03-12"}
		}
	}`), f.posts, nil, &RequestOptions{Attributes: []string{"title"}})
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "unauthorized_attribute", payload.Code)
	assert.Equal(t, "403", payload.Status)
	assert.Equal(t, "/data/attributes/published_at", payload.Source.Pointer)
}

func TestDeserializeUnknownRelationship(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"tags": {"data": []}}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "unknown_relationship", payload.Code)
	assert.Equal(t, "422", payload.Status)
	assert.Equal(t, "/data/relationships/tags", payload.Source.Pointer)
}

func TestDeserializeForbiddenRelationship(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": null}}
		}
	}`), f.posts, nil, &RequestOptions{Relationships: []string{"comments"}})
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "unauthorized_relationship", payload.Code)
	assert.Equal(t, "403", payload.Status)
	assert.Equal(t, "/data/relationships/author", payload.Source.Pointer)
}

func TestDeserializeDocumentTypeMismatch(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {"type": "articles"}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "invalid_document_type", payload.Code)
	assert.Equal(t, "409", payload.Status)
	assert.Equal(t, "/data/type", payload.Source.Pointer)
	assert.Equal(t, 409, apiErr.HTTPStatus())
}

func TestDeserializeToOneRelationshipGivenArray(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": [{"id": "9", "type": "people"}]}}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "invalid_relationship", payload.Code)
	assert.Equal(t, "400", payload.Status)
	assert.Equal(t, "/data/relationships/author/data", payload.Source.Pointer)
}

func TestDeserializeToManyRelationshipGivenObject(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"comments": {"data": {"id": "5", "type": "comments"}}}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "invalid_relationship", payload.Code)
	assert.Equal(t, "/data/relationships/comments", payload.Source.Pointer)
}

func TestDeserializeRelationshipTypeMismatch(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {
				"author": {"data": {"id": "9", "type": "robots"}},
				"comments": {"data": [{"id": "5", "type": "comments"}, {"id": "12", "type": "robots"}]}
			}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 2)
	pointers := []string{apiErr.Payloads[0].Source.Pointer, apiErr.Payloads[1].Source.Pointer}
	assert.ElementsMatch(t, []string{
		"/data/relationships/author/data/type",
		"/data/relationships/comments/data/1/type",
	}, pointers)
	for _, payload := range apiErr.Payloads {
		assert.Equal(t, "invalid_relationship_type", payload.Code)
		assert.Equal(t, "409", payload.Status)
	}
	assert.Equal(t, 409, apiErr.HTTPStatus())
}

func TestDeserializeMissingToOneRelationship(t *testing.T) {
	f := newBlogFixture(t)

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": {"id": "404", "type": "people"}}}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "missing_relationship", payload.Code)
	assert.Equal(t, "404", payload.Status)
	assert.Equal(t, "/data/relationships/author/data", payload.Source.Pointer)
	assert.Equal(t, 404, apiErr.HTTPStatus())
}

func TestDeserializeMissingToManyRelationships(t *testing.T) {
	f := newBlogFixture(t)

	// Only comment 5 exists; the two absent ids are each reported at their index.
	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"comments": {"data": [
				{"id": "404", "type": "comments"},
				{"id": "5", "type": "comments"},
				{"id": "405", "type": "comments"}
			]}}
		}
	}`), f.posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 2)
	assert.Equal(t, "/data/relationships/comments/data/0/id", apiErr.Payloads[0].Source.Pointer)
	assert.Equal(t, "/data/relationships/comments/data/2/id", apiErr.Payloads[1].Source.Pointer)
	for _, payload := range apiErr.Payloads {
		assert.Equal(t, "missing_relationship", payload.Code)
		assert.Equal(t, "404", payload.Status)
	}
}

func TestDeserializeUnauthorizedToOneRelationship(t *testing.T) {
	f := newBlogFixture(t)
	people := mustNewSchema(t, &SchemaDefinition{
		ResourceType: "people",
		Lookup:       f.authorLookup,
		Authorizer:   func(Resource) bool { return false },
	})
	posts := mustNewSchema(t, &SchemaDefinition{
		ResourceType: "posts",
		Lookup:       f.postLookup,
		Relationships: []RelationshipDefinition{
			{Name: "author", Schema: StaticSchemaRef(people)},
		},
	})

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": {"id": "9", "type": "people"}}}
		}
	}`), posts, nil, nil)
	apiErr := requireError(t, err)
	require.Len(t, apiErr.Payloads, 1)
	payload := apiErr.Payloads[0]
	assert.Equal(t, "unauthorized_resource", payload.Code)
	assert.Equal(t, "403", payload.Status)
}

func TestDeserializeUpdateIdentifierChecks(t *testing.T) {
	f := newBlogFixture(t)
	resource := &testResource{id: 42}

	t.Run("Match", func(t *testing.T) {
		params, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": "42", "attributes": {"title": "T"}}
		}`), f.posts, resource, nil)
		require.NoError(t, err)
		assert.Equal(t, "T", params["title"])
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": "41", "attributes": {"title": "T"}}
		}`), f.posts, resource, nil)
		apiErr := requireError(t, err)
		require.Len(t, apiErr.Payloads, 1)
		payload := apiErr.Payloads[0]
		assert.Equal(t, "invalid_document_identifier", payload.Code)
		assert.Equal(t, "409", payload.Status)
		assert.Equal(t, "/data/id", payload.Source.Pointer)
	})

	t.Run("NotAString", func(t *testing.T) {
		_, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": 42, "attributes": {"title": "T"}}
		}`), f.posts, resource, nil)
		apiErr := requireError(t, err)
		assert.Equal(t, "invalid_document_identifier", apiErr.Payloads[0].Code)
	})
}

func TestDeserializeClientGeneratedIdentifiers(t *testing.T) {
	f := newBlogFixture(t)

	t.Run("IllegalWhenNotDeclared", func(t *testing.T) {
		_, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": "43"}
		}`), f.posts, nil, nil)
		apiErr := requireError(t, err)
		require.Len(t, apiErr.Payloads, 1)
		payload := apiErr.Payloads[0]
		assert.Equal(t, "illegal_client_generated_identifier", payload.Code)
		assert.Equal(t, "403", payload.Status)
		assert.Equal(t, "/data/id", payload.Source.Pointer)
	})

	withID := mustNewSchema(t, &SchemaDefinition{
		ResourceType: "posts",
		Lookup:       f.postLookup,
		Attributes: []AttributeDefinition{
			{Name: "id"},
			{Name: "title"},
		},
	})

	t.Run("ConflictWhenTaken", func(t *testing.T) {
		_, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": "42"}
		}`), withID, nil, nil)
		apiErr := requireError(t, err)
		require.Len(t, apiErr.Payloads, 1)
		payload := apiErr.Payloads[0]
		assert.Equal(t, "invalid_client_generated_identifier", payload.Code)
		assert.Equal(t, "409", payload.Status)
	})

	t.Run("AcceptedWhenFree", func(t *testing.T) {
		params, err := Deserialize(context.Background(), []byte(`{
			"data": {"type": "posts", "id": "43", "attributes": {"id": "43", "title": "T"}}
		}`), withID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "43", params["id"])
	})
}

func TestDeserializeLookupFailure(t *testing.T) {
	f := newBlogFixture(t)
	people := mustNewSchema(t, &SchemaDefinition{
		ResourceType: "people",
		Lookup:       failingLookup{},
	})
	posts := mustNewSchema(t, &SchemaDefinition{
		ResourceType: "posts",
		Lookup:       f.postLookup,
		Relationships: []RelationshipDefinition{
			{Name: "author", Schema: StaticSchemaRef(people)},
		},
	})

	_, err := Deserialize(context.Background(), []byte(`{
		"data": {
			"type": "posts",
			"relationships": {"author": {"data": {"id": "9", "type": "people"}}}
		}
	}`), posts, nil, nil)
	apiErr := requireError(t, err)
	assert.Equal(t, 500, apiErr.HTTPStatus())
	assert.Equal(t, "internal_error", apiErr.Payloads[0].Code)
}
