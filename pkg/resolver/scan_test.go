package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/configtree"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/reference"
)

func TestScan_FindsReferences(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"name": "app",
		"port": 8080,
		"database": map[string]any{
			"password": "keyvault://vault.example.com/secrets/db-pass",
			"user":     "keyvault://username@vault.example.com/secrets/db-creds",
			"host":     "https://vault.example.com/secrets/db-pass",
		},
	}

	refs, err := Scan(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{"database.password", "database.user"}, refs.Paths())
	assert.Equal(t, Entry{
		Path: configtree.Path{"database", "password"},
		Ref:  reference.Reference{Host: "vault.example.com", Path: "/secrets/db-pass"},
	}, refs["database.password"])
	assert.Equal(t, "username", refs["database.user"].Ref.Tag)
}

func TestScan_IgnoresNonReferences(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"plain":   "hello",
		"url":     "https://vault.example.com/secrets/x",
		"broken":  "keyvault://%zz",
		"empty":   "",
		"enabled": true,
	}

	refs, err := Scan(tree)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestScan_Idempotent(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "keyvault://vault.example.com/secrets/c"},
			"e": "keyvault://tag@vault.example.com/secrets/e/v1",
		},
		"list": []any{"keyvault://vault.example.com/secrets/l"},
	}

	first, err := Scan(tree)
	require.NoError(t, err)
	second, err := Scan(tree)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScan_Sequences(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"servers": []any{
			map[string]any{"password": "keyvault://vault.example.com/secrets/s0"},
			"keyvault://vault.example.com/secrets/s1",
		},
	}

	refs, err := Scan(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{"servers.0.password", "servers.1"}, refs.Paths())
}

func TestScan_DottedPathCollision(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a.b": "keyvault://vault.example.com/secrets/one",
		"a":   map[string]any{"b": "keyvault://vault.example.com/secrets/two"},
	}

	_, err := Scan(tree)
	var travErr *configtree.TraversalError
	require.ErrorAs(t, err, &travErr)
	assert.Equal(t, "a.b", travErr.Path)
}

func TestScan_Cycle(t *testing.T) {
	t.Parallel()

	inner := map[string]any{"secret": "keyvault://vault.example.com/secrets/x"}
	tree := map[string]any{"inner": inner}
	inner["self"] = inner

	_, err := Scan(tree)
	var travErr *configtree.TraversalError
	assert.ErrorAs(t, err, &travErr)
}

func TestScan_DoesNotModifyTree(t *testing.T) {
	t.Parallel()

	tree := map[string]any{"p": "keyvault://vault.example.com/secrets/p"}
	_, err := Scan(tree)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"p": "keyvault://vault.example.com/secrets/p"}, tree)
}
