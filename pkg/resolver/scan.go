package resolver

import (
	"fmt"
	"maps"
	"slices"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/configtree"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/reference"
)

// Entry is one reference found in a tree.
type Entry struct {
	// Path addresses the leaf holding the reference.
	Path configtree.Path

	// Ref is the parsed reference.
	Ref reference.Reference
}

// References maps dotted paths to the references found there.
type References map[string]Entry

// Paths returns the dotted paths in sorted order.
func (r References) Paths() []string {
	return slices.Sorted(maps.Keys(r))
}

// Scan finds every secret reference in tree. Strings that are not keyvault
// URIs are ignored. The tree is not modified.
//
// Scan fails with a *configtree.TraversalError when the tree contains
// itself, has a mapping with non-string keys, or has two leaves whose
// paths render to the same dotted string.
func Scan(tree map[string]any) (References, error) {
	refs := make(References)

	err := configtree.Walk(tree, func(path configtree.Path, value string) error {
		ref, ok := reference.Parse(value)
		if !ok {
			return nil
		}

		key := path.String()
		if prev, exists := refs[key]; exists && !prev.Path.Equal(path) {
			return &configtree.TraversalError{
				Path:    key,
				Message: fmt.Sprintf("two references share this dotted path (segments %q and %q)", prev.Path, path),
			}
		}

		refs[key] = Entry{Path: path, Ref: ref}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return refs, nil
}
