package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSinglePlaceholder(t *testing.T) {
	root := map[string]interface{}{
		"name": "alpha",
		"nested": map[string]interface{}{
			"list":  []interface{}{"a", "b"},
			"count": 3,
		},
	}

	tests := []struct {
		name string
		in   string
		want interface{}
	}{
		{"string value", "${name}", "alpha"},
		{"nested path", "${nested.count}", 3},
		{"index path", "${nested.list.1}", "b"},
		{"bracket index", "${nested.list[0]}", "a"},
		{"whole list", "${nested.list}", []interface{}{"a", "b"}},
		{"undefined stays", "${missing.path}", "${missing.path}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]interface{}{"field": tt.in}
			got := Resolve(doc, root)
			if diff := cmp.Diff(map[string]interface{}{"field": tt.want}, got); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveSplicesMultiplePlaceholders(t *testing.T) {
	root := map[string]interface{}{"host": "example.org", "port": "8080"}
	doc := map[string]interface{}{
		"url":   "http://${host}:${port}/path",
		"other": "${host} and ${unknown}",
	}

	Resolve(doc, root)

	assert.Equal(t, "http://example.org:8080/path", doc["url"])
	assert.Equal(t, "example.org and ${unknown}", doc["other"])
}

func TestResolveTypePromotion(t *testing.T) {
	root := map[string]interface{}{
		"obj":  map[string]interface{}{"k": "v"},
		"flag": true,
	}
	doc := map[string]interface{}{
		"args": map[string]interface{}{
			"data":    "prefix ${obj} suffix",
			"enabled": "${flag}",
		},
		"list": []interface{}{"${flag}", 1},
	}

	Resolve(doc, root)

	args := doc["args"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"k": "v"}, args["data"])
	assert.Equal(t, true, args["enabled"])
	assert.Equal(t, []interface{}{true, 1}, doc["list"])
}

func TestResolvePrefix(t *testing.T) {
	scope := map[string]interface{}{"out": "value"}

	t.Run("optional prefix", func(t *testing.T) {
		doc := map[string]interface{}{"a": "${extracted.out}", "b": "${out}"}
		Resolve(doc, scope, WithPrefix("extracted."))
		assert.Equal(t, "value", doc["a"])
		assert.Equal(t, "value", doc["b"])
	})

	t.Run("required prefix", func(t *testing.T) {
		doc := map[string]interface{}{"a": "${self.out}", "b": "${out}"}
		Resolve(doc, scope, WithRequiredPrefix("self."))
		assert.Equal(t, "value", doc["a"])
		assert.Equal(t, "${out}", doc["b"])
	})
}

func TestResolveTopLevelString(t *testing.T) {
	got := Resolve("${n}", map[string]interface{}{"n": 5})
	require.Equal(t, 5, got)
}

func TestResolveIsSinglePass(t *testing.T) {
	root := map[string]interface{}{"a": "${b}", "b": "final"}
	doc := map[string]interface{}{"v": "${a}"}

	Resolve(doc, root)

	assert.Equal(t, "${b}", doc["v"])
}

func TestLookupDottedKey(t *testing.T) {
	root := map[string]interface{}{
		"a.b": "flat",
		"a":   map[string]interface{}{"b": "nested"},
	}

	v, ok := Lookup(root, "a.b")
	require.True(t, ok)
	assert.Equal(t, "flat", v)
}

type namedMap map[string]interface{}

func TestLookupNamedMapType(t *testing.T) {
	root := namedMap{"x": namedMap{"y": 1}}

	v, ok := Lookup(root, "x.y")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Lookup(root, "x.z")
	assert.False(t, ok)
}
