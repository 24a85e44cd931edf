package configtree

import (
	"fmt"
	"strconv"
)

// Get returns the value at path.
func Get(tree map[string]any, path Path) (any, bool) {
	var cur any = tree
	for _, seg := range path {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set writes value at path, overwriting what is there. Missing or nil
// intermediate nodes are created as map[string]any. Descending into a scalar
// or past the end of a sequence is a *TraversalError.
func Set(tree map[string]any, path Path, value any) error {
	if len(path) == 0 {
		return &TraversalError{Message: "cannot set the root of the tree"}
	}
	if tree == nil {
		return &TraversalError{Path: path.String(), Message: "tree is nil"}
	}

	var cur any = tree
	for i, seg := range path[:len(path)-1] {
		next, ok := child(cur, seg)
		if !ok || next == nil {
			created := make(map[string]any)
			if err := assign(cur, path[:i+1], created); err != nil {
				return err
			}
			next = created
		}
		cur = next
	}
	return assign(cur, path, value)
}

func child(node any, seg string) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case map[any]any:
		next, ok := v[seg]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// assign sets the last segment of path on the container node.
func assign(node any, path Path, value any) error {
	seg := path[len(path)-1]
	switch v := node.(type) {
	case map[string]any:
		v[seg] = value
	case map[any]any:
		v[seg] = value
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return &TraversalError{
				Path:    path.String(),
				Message: fmt.Sprintf("index %q out of range for sequence of length %d", seg, len(v)),
			}
		}
		v[idx] = value
	default:
		return &TraversalError{
			Path:    path.String(),
			Message: fmt.Sprintf("cannot descend into %T", node),
		}
	}
	return nil
}
