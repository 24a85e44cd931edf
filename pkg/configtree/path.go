package configtree

import "strings"

// Path addresses a node in a tree, one segment per level.
type Path []string

// ParsePath splits a dotted path. Segments containing dots cannot be
// expressed this way; use a Path literal for those.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	return Path(strings.Split(dotted, "."))
}

// String returns the dotted form, e.g. "database.password".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with seg appended. p is not modified.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
