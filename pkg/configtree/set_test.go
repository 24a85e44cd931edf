package configtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_OverwritesLeaf(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "ref", "d": "sibling"},
			"e": "other",
		},
	}

	require.NoError(t, Set(tree, Path{"a", "b", "c"}, "secret"))

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "secret", "d": "sibling"},
			"e": "other",
		},
	}, tree)
}

func TestSet_CreatesIntermediateMappings(t *testing.T) {
	t.Parallel()

	tree := map[string]any{"a": nil}
	require.NoError(t, Set(tree, Path{"a", "b", "c"}, "v"))

	got, ok := Get(tree, Path{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestSet_Sequences(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"servers": []any{map[string]any{"password": "ref"}, "ref"},
	}

	require.NoError(t, Set(tree, Path{"servers", "0", "password"}, "p0"))
	require.NoError(t, Set(tree, Path{"servers", "1"}, "p1"))

	assert.Equal(t, []any{map[string]any{"password": "p0"}, "p1"}, tree["servers"])

	err := Set(tree, Path{"servers", "5"}, "x")
	var travErr *TraversalError
	require.ErrorAs(t, err, &travErr)
	assert.Equal(t, "servers.5", travErr.Path)
}

func TestSet_AnyKeyedMapping(t *testing.T) {
	t.Parallel()

	legacy := map[any]any{"secret": "ref"}
	tree := map[string]any{"legacy": legacy}

	require.NoError(t, Set(tree, Path{"legacy", "secret"}, "value"))
	assert.Equal(t, "value", legacy["secret"])
}

func TestSet_Errors(t *testing.T) {
	t.Parallel()

	tree := map[string]any{"scalar": "x"}

	var travErr *TraversalError
	require.ErrorAs(t, Set(tree, nil, "v"), &travErr)
	require.ErrorAs(t, Set(nil, Path{"a"}, "v"), &travErr)
	require.ErrorAs(t, Set(tree, Path{"scalar", "child"}, "v"), &travErr)
	assert.Equal(t, "x", tree["scalar"])
}

func TestGet(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a":    map[string]any{"b": []any{"zero", "one"}},
		"port": 80,
	}

	v, ok := Get(tree, Path{"a", "b", "1"})
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = Get(tree, Path{"port"})
	assert.True(t, ok)
	assert.Equal(t, 80, v)

	_, ok = Get(tree, Path{"a", "missing"})
	assert.False(t, ok)
	_, ok = Get(tree, Path{"a", "b", "9"})
	assert.False(t, ok)
	_, ok = Get(tree, Path{"port", "x"})
	assert.False(t, ok)
}

func TestPath(t *testing.T) {
	t.Parallel()

	p := ParsePath("a.b")
	assert.Equal(t, Path{"a", "b"}, p)
	assert.Equal(t, "a.b.c", p.Child("c").String())
	assert.Equal(t, "a.b", p.String())
	assert.True(t, p.Equal(Path{"a", "b"}))
	assert.False(t, p.Equal(Path{"a"}))
	assert.Nil(t, ParsePath(""))
}
