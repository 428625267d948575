package jsonapifu

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResource struct {
	id   any
	slug string
}

func (r *testResource) IDValue(field string) any {
	if field == "slug" {
		return r.slug
	}
	return r.id
}

type testLookup struct {
	resources     []*testResource
	findOneCalls  int
	findManyCalls int
}

func (l *testLookup) FindOne(ctx context.Context, field string, value string) (Resource, error) {
	l.findOneCalls++
	for _, r := range l.resources {
		if formatIDValue(r.IDValue(field)) == value {
			return r, nil
		}
	}
	return nil, nil
}

func (l *testLookup) FindMany(ctx context.Context, field string, values []string) ([]Resource, error) {
	l.findManyCalls++
	var ret []Resource
	for _, r := range l.resources {
		for _, value := range values {
			if formatIDValue(r.IDValue(field)) == value {
				ret = append(ret, r)
				break
			}
		}
	}
	return ret, nil
}

type failingLookup struct{}

func (failingLookup) FindOne(ctx context.Context, field string, value string) (Resource, error) {
	return nil, fmt.Errorf("store is down")
}

func (failingLookup) FindMany(ctx context.Context, field string, values []string) ([]Resource, error) {
	return nil, fmt.Errorf("store is down")
}

func mustNewSchema(t *testing.T, def *SchemaDefinition) *Schema {
	t.Helper()
	schema, err := NewSchema(def)
	require.NoError(t, err)
	return schema
}

func TestValidateMemberName(t *testing.T) {
	for name, tc := range map[string]struct {
		In   string
		Okay bool
	}{
		"Lowercase": {
			In:   "foo",
			Okay: true,
		},
		"Mixed": {
			In:   "fooBar12",
			Okay: true,
		},
		"Hyphens": {
			In:   "foo-Bar12",
			Okay: true,
		},
		"HyphenAtStart": {
			In:   "-foo",
			Okay: false,
		},
		"UnderscoreAtEnd": {
			In:   "foo_",
			Okay: false,
		},
		"Empty": {
			In:   "",
			Okay: false,
		},
		"IllegalCharacter": {
			In:   "foo!Bar",
			Okay: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := ValidateMemberName(tc.In)
			if tc.Okay {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitizeDocument(t *testing.T) {
	t.Run("RawJSON", func(t *testing.T) {
		doc, err := SanitizeDocument([]byte(`{"data":{"type":"posts","attributes":{"count":9007199254740993}}}`))
		require.NoError(t, err)
		data := doc["data"].(map[string]any)
		attributes := data["attributes"].(map[string]any)
		// Large integers must not be truncated through float64.
		assert.Equal(t, "9007199254740993", fmt.Sprintf("%v", attributes["count"]))
	})

	t.Run("CopiesMaps", func(t *testing.T) {
		original := map[string]any{
			"data": map[string]any{
				"type":       "posts",
				"attributes": map[string]any{"title": "T"},
			},
		}
		doc, err := SanitizeDocument(original)
		require.NoError(t, err)

		doc["data"].(map[string]any)["attributes"].(map[string]any)["title"] = "changed"
		assert.Equal(t, "T", original["data"].(map[string]any)["attributes"].(map[string]any)["title"])
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, in := range map[string]any{
			"Nil":        nil,
			"BadJSON":    []byte(`{"data":`),
			"WrongShape": 42,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := SanitizeDocument(in)
				assert.Error(t, err)
			})
		}
	})
}
