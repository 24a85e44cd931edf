package configtree

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
)

// LeafFunc is called by Walk for every string leaf. Returning an error stops
// the walk and Walk returns that error.
type LeafFunc func(path Path, value string) error

// Walk visits every string leaf of tree in a deterministic order (mapping
// keys sorted, sequences in index order). Numbers, booleans, nil and values
// of other types are skipped.
func Walk(tree map[string]any, fn LeafFunc) error {
	w := &walker{
		fn:     fn,
		active: make(map[nodeID]bool),
	}
	return w.walk(nil, tree)
}

// nodeID identifies a mapping or sequence by its backing storage.
type nodeID struct {
	ptr uintptr
	len int
}

type walker struct {
	fn LeafFunc

	// active holds the containers on the current descent; meeting one of
	// them again means the tree contains itself.
	active map[nodeID]bool
}

func (w *walker) walk(path Path, node any) error {
	switch v := node.(type) {
	case string:
		return w.fn(path, v)
	case map[string]any:
		return w.enter(path, v, func() error {
			for _, key := range slices.Sorted(maps.Keys(v)) {
				if err := w.walk(path.Child(key), v[key]); err != nil {
					return err
				}
			}
			return nil
		})
	case map[any]any:
		return w.enter(path, v, func() error {
			keys := make([]string, 0, len(v))
			for key := range v {
				s, ok := key.(string)
				if !ok {
					return &TraversalError{
						Path:    path.String(),
						Message: fmt.Sprintf("mapping key %v (%T) is not a string", key, key),
					}
				}
				keys = append(keys, s)
			}
			slices.Sort(keys)
			for _, key := range keys {
				if err := w.walk(path.Child(key), v[key]); err != nil {
					return err
				}
			}
			return nil
		})
	case []any:
		return w.enter(path, v, func() error {
			for i, elem := range v {
				if err := w.walk(path.Child(strconv.Itoa(i)), elem); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return nil
	}
}

func (w *walker) enter(path Path, container any, visit func() error) error {
	rv := reflect.ValueOf(container)
	if rv.IsNil() || rv.Len() == 0 {
		return nil
	}

	id := nodeID{ptr: rv.Pointer(), len: rv.Len()}
	if w.active[id] {
		return &TraversalError{
			Path:    path.String(),
			Message: "cycle detected: node contains itself",
		}
	}
	w.active[id] = true
	defer delete(w.active, id)

	return visit()
}
