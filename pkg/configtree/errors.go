package configtree

import "fmt"

// TraversalError reports a tree that cannot be walked or patched.
type TraversalError struct {
	// Path is the dotted path of the offending node.
	Path string

	// Message describes the structural problem.
	Message string
}

// Error implements the error interface.
func (e *TraversalError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration tree: %s", e.Message)
	}
	return fmt.Sprintf("configuration tree at %q: %s", e.Path, e.Message)
}
