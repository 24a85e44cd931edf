// Package configtree walks and patches untyped configuration trees.
//
// A tree is the value produced by decoding a JSON or YAML document into a
// map[string]any: nested mappings (map[string]any, or map[any]any with string
// keys), sequences ([]any) and scalar leaves. Leaves are addressed by a Path
// of segments; sequence elements use their decimal index as the segment.
//
// Walk visits every string leaf and reports structures that cannot be walked
// (cycles, non-string mapping keys) as a *TraversalError. Set writes a value
// at a path in place, creating intermediate mappings that do not exist.
package configtree
